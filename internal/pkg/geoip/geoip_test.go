package geoip_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"leadlens/internal/pkg/geoip"
)

func TestCountryCodeWithoutDatabase(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"unset path", ""},
		{"missing file", filepath.Join(t.TempDir(), "GeoLite2-Country.mmdb")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geoip.Reload(tt.path)
			assert.Nil(t, geoip.GetGeoDB())
			assert.Equal(t, "", geoip.CountryCode("81.2.69.142"))
		})
	}
}

func TestReloadRejectsCorruptDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GeoLite2-Country.mmdb")
	assert.NoError(t, os.WriteFile(path, []byte("not a maxmind database"), 0o644))

	geoip.Reload(path)
	t.Cleanup(func() { geoip.Reload("") })

	assert.Nil(t, geoip.GetGeoDB())
	assert.Equal(t, "", geoip.CountryCode("not-an-ip"))
}
