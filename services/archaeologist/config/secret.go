// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// Secret holds a credential sealed in an encrypted memguard enclave.
//
// Description:
//
//	API keys and the graph password are sealed right after loading so
//	they do not sit in plain Go strings for the life of the process.
//	Reveal opens the enclave only for the moment a client is built.
//
// Thread Safety: Safe for concurrent use. The zero value is an unset secret.
type Secret struct {
	enclave *memguard.Enclave
}

// NewSecret seals value. An empty value yields an unset secret.
func NewSecret(value string) *Secret {
	if value == "" {
		return &Secret{}
	}
	return &Secret{enclave: memguard.NewEnclave([]byte(value))}
}

// IsSet reports whether the secret holds a value.
func (s *Secret) IsSet() bool {
	return s != nil && s.enclave != nil
}

// Reveal returns a copy of the plaintext value, or "" if unset.
func (s *Secret) Reveal() (string, error) {
	if !s.IsSet() {
		return "", nil
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("opening secret enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// String never prints the value.
func (s *Secret) String() string {
	if s.IsSet() {
		return "[REDACTED]"
	}
	return ""
}
