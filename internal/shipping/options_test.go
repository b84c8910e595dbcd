package shipping

import (
	"testing"

	"pack-store/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Resolve(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		name      string
		id        string
		wantID    string
		wantPrice string
		wantErr   error
	}{
		{name: "Empty falls back to standard", id: "", wantID: "standard", wantPrice: "0"},
		{name: "Express", id: "express", wantID: "express", wantPrice: "9.95"},
		{name: "Unknown method", id: "drone", wantErr: model.ErrInvalidShippingMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := catalog.Resolve(tt.id)

			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, opt.ID)
			assert.Equal(t, tt.wantPrice, opt.Price.String())
		})
	}
}

func TestCatalog_ListReturnsCopy(t *testing.T) {
	catalog := DefaultCatalog()

	list := catalog.List()
	require.Len(t, list, 3)
	list[0].Name = "changed"

	assert.Equal(t, "Standard Delivery", catalog.List()[0].Name)
}
