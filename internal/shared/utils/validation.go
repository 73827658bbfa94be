// Package utils holds input validation shared by the catalog and the API.
package utils

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Size limits
const (
	MaxBundleNameLength = 256
	MaxPayloadSize      = 64 * 1024
	MaxDeviceIDLength   = 128
)

var (
	// BundleNamePattern allows alphanumerics, dots, hyphens and underscores
	BundleNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	// DeviceIDPattern allows alphanumerics, hyphens and underscores
	DeviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateBundleName checks a bundle name's length and characters
func ValidateBundleName(name string) error {
	if name == "" {
		return fmt.Errorf("bundle name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxBundleNameLength {
		return fmt.Errorf("bundle name exceeds %d characters", MaxBundleNameLength)
	}
	if !BundleNamePattern.MatchString(name) {
		return fmt.Errorf("bundle name %q contains invalid characters", name)
	}
	return nil
}

// ValidateDeviceID checks a remote device identifier. Empty is valid and means local.
func ValidateDeviceID(device string) error {
	if device == "" {
		return nil
	}
	if len(device) > MaxDeviceIDLength {
		return fmt.Errorf("device id exceeds %d characters", MaxDeviceIDLength)
	}
	if !DeviceIDPattern.MatchString(device) {
		return fmt.Errorf("device id %q contains invalid characters", device)
	}
	return nil
}

// ValidatePayload checks the size of an intent payload
func ValidatePayload(data []byte) error {
	if len(data) > MaxPayloadSize {
		return fmt.Errorf("payload size %d bytes exceeds maximum %d bytes", len(data), MaxPayloadSize)
	}
	return nil
}
