package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCaps(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		want    map[string]float64
		wantErr string
	}{
		{
			name: "header row skipped",
			csv:  "sector,market_cap\nAdTech,500\nCloud SaaS,300\n",
			want: map[string]float64{"AdTech": 500, "Cloud SaaS": 300},
		},
		{
			name: "no header",
			csv:  "AdTech,500\nFintech,0\n",
			want: map[string]float64{"AdTech": 500, "Fintech": 0},
		},
		{
			name: "dollar signs and thousands separators",
			csv:  "sector,market_cap\nAdTech,\"$1,250,000\"\n Cybersecurity , $42.5\n",
			want: map[string]float64{"AdTech": 1250000, "Cybersecurity": 42.5},
		},
		{
			name:    "bad value after header",
			csv:     "sector,market_cap\nAdTech,lots\n",
			wantErr: "line 2",
		},
		{
			name:    "header only",
			csv:     "sector,market_cap\n",
			wantErr: "no market caps found",
		},
		{
			name:    "wrong field count",
			csv:     "AdTech,500,extra\n",
			wantErr: "wrong number of fields",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readCaps(strings.NewReader(tt.csv))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
