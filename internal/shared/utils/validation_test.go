package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBundleName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"reverse dns", "com.example.notes", false},
		{"launcher", "com.ohos.launcher", false},
		{"underscore and hyphen", "my_app-2", false},
		{"empty", "", true},
		{"space", "com.example notes", true},
		{"path", "../etc/passwd", true},
		{"too long", strings.Repeat("a", MaxBundleNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBundleName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDeviceID(t *testing.T) {
	assert.NoError(t, ValidateDeviceID(""))
	assert.NoError(t, ValidateDeviceID("tablet-01"))
	assert.Error(t, ValidateDeviceID("tablet.01"))
	assert.Error(t, ValidateDeviceID(strings.Repeat("d", MaxDeviceIDLength+1)))
}

func TestValidatePayload(t *testing.T) {
	assert.NoError(t, ValidatePayload(nil))
	assert.NoError(t, ValidatePayload(make([]byte, MaxPayloadSize)))
	assert.Error(t, ValidatePayload(make([]byte, MaxPayloadSize+1)))
}
