package pharmacy

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/infrastructure/storage"
)

func TestCompoundCare_SubmitOrder(t *testing.T) {
	store := storage.NewStubDocumentStorage()
	integration, err := NewCompoundCareIntegration(store, nil)
	require.NoError(t, err)

	req := dispatchRequest(t)
	req.Treatment.Compounded = true

	result, err := integration.SubmitOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "cc-"+req.Order.OrderNumber, result.PartnerOrderID)
	assert.NotEmpty(t, result.DocumentURL)

	key := fmt.Sprintf("compoundcare/orders/%s.json", req.Order.OrderNumber)
	data, ok := store.Get(key)
	require.True(t, ok, "order document should be stored")

	var doc orderDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, req.Order.OrderNumber, doc.OrderNumber)
	assert.Equal(t, "Ada", doc.Patient.FirstName)
	assert.Equal(t, "Semaglutide 0.5mg", doc.Medication.Name)
	assert.True(t, doc.Medication.Compounded)
}

func TestCompoundCare_Partner(t *testing.T) {
	integration, err := NewCompoundCareIntegration(storage.NewStubDocumentStorage(), nil)
	require.NoError(t, err)

	assert.Equal(t, fulfillment.PartnerCompoundCare, integration.Partner())
}

func TestNewCompoundCareIntegration_RequiresStorage(t *testing.T) {
	_, err := NewCompoundCareIntegration(nil, nil)
	assert.Error(t, err)
}
