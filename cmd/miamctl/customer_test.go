package main

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/monmiam/internal/models"
)

func TestParseItem(t *testing.T) {
	tests := []struct {
		in      string
		want    itemSpec
		wantErr bool
	}{
		{in: "3:2", want: itemSpec{articleID: 3, quantity: 2}},
		{in: "7", want: itemSpec{articleID: 7, quantity: 1}},
		{in: "x:2", wantErr: true},
		{in: "3:0", wantErr: true},
		{in: "-1:1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseItem(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFillCart(t *testing.T) {
	menu := []models.Article{
		{ID: 1, Name: "Thiéboudienne", Price: decimal.NewFromInt(1500)},
		{ID: 2, Name: "Bissap", Price: decimal.NewFromInt(500)},
	}

	c, err := fillCart(menu, []itemSpec{{articleID: 1, quantity: 2}, {articleID: 2, quantity: 1}, {articleID: 1, quantity: 1}})
	require.NoError(t, err)

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 1, lines[1].Quantity)

	_, err = fillCart(menu, []itemSpec{{articleID: 9, quantity: 1}})
	assert.Error(t, err)
}

func TestDefaultArrival(t *testing.T) {
	now := time.Date(2026, 3, 2, 11, 45, 0, 0, time.UTC)
	got := defaultArrival(now)
	assert.Equal(t, "12:15", got)

	var verr *models.ValidationError
	err := models.CreateOrderRequest{ArrivalTime: got}.Validate()
	require.True(t, errors.As(err, &verr))
	assert.NotContains(t, verr.Fields, "heure_arrivee")
	assert.Contains(t, verr.Fields, "items")
}
