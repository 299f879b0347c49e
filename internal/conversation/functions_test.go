package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionDefinitionsCoverAllOperations(t *testing.T) {
	defs := functionDefinitions()
	require.Len(t, defs, 6)

	names := make(map[string]bool, len(defs))
	for _, d := range defs {
		names[d.Name] = true
	}
	for _, want := range []string{
		FnCreateReservation,
		FnCreateClinicVisit,
		FnGetVisitHistory,
		FnSearchOrganizations,
		FnGetPlannedVisits,
		FnGetDrugStock,
	} {
		assert.True(t, names[want], "missing definition for %s", want)
	}
}

func TestDecodeArgsEmptyIsZeroValue(t *testing.T) {
	args, err := decodeArgs[drugStockArgs]("")
	require.NoError(t, err)
	assert.Empty(t, args.DrugName)

	args, err = decodeArgs[drugStockArgs]("  ")
	require.NoError(t, err)
	assert.Empty(t, args.DrugName)
}

func TestDecodeArgsMalformedJSON(t *testing.T) {
	_, err := decodeArgs[reservationArgs](`{"pharmacyName":`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadArguments)
}

func TestDecodeArgsReservation(t *testing.T) {
	args, err := decodeArgs[reservationArgs](
		`{"pharmacyName":"Сино","drugs":[{"drugName":"Аспирин","quantity":2.5}],"prepaymentPercent":30}`)

	require.NoError(t, err)
	assert.Equal(t, "Сино", args.PharmacyName)
	require.Len(t, args.Drugs, 1)
	assert.Equal(t, 2.5, args.Drugs[0].Quantity)
	require.NotNil(t, args.PrepaymentPercent)
	assert.Equal(t, 30.0, *args.PrepaymentPercent)
}

func TestDecodeArgsOmittedPrepaymentStaysNil(t *testing.T) {
	args, err := decodeArgs[reservationArgs](`{"pharmacyName":"Сино","drugs":[]}`)

	require.NoError(t, err)
	assert.Nil(t, args.PrepaymentPercent, "absent and zero prepayment must be distinguishable")
}
