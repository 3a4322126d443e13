// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts journal payloads at rest with filippo.io/age.
//
// Buffered messages and downstream results can carry user data, and the
// journal keeps them on disk until retention prunes the instance. When
// the service is configured with age recipients, every payload is
// encrypted to all of them before it is written, and decrypted with the
// service's identity when replayed.
//
// Ciphertext is the raw age binary format (no armor, no base64): it is
// stored in a SQLite BLOB column, never in a text field.
package sealed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

// ErrNoIdentity is returned by Open when the Sealer was built without
// an identity and so can only encrypt.
var ErrNoIdentity = errors.New("sealed: no identity configured for decryption")

// Sealer encrypts to a fixed recipient set and decrypts with a fixed
// identity set. It is safe for concurrent use.
type Sealer struct {
	recipients []age.Recipient
	identities []age.Identity
}

// New builds a Sealer from age public keys (age1...) and identities. At
// least one recipient is required. Identities may be empty for a
// write-only sealer.
func New(recipientKeys []string, identities []age.Identity) (*Sealer, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("sealed: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("sealed: parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return &Sealer{recipients: recipients, identities: identities}, nil
}

// ParseIdentityFile reads an age identity file (one AGE-SECRET-KEY-1...
// per line, # comments allowed), as written by age-keygen or
// GenerateKeypair.
func ParseIdentityFile(path string) ([]age.Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sealed: opening identity file: %w", err)
	}
	defer file.Close()

	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identity file %s: %w", path, err)
	}
	return identities, nil
}

// Keypair is a freshly generated age x25519 keypair in text form.
type Keypair struct {
	// PublicKey is the age1... recipient string. Safe to put in the
	// config file.
	PublicKey string

	// PrivateKey is the AGE-SECRET-KEY-1... identity string. Belongs in
	// an identity file readable only by the service user.
	PrivateKey string
}

// GenerateKeypair creates a new x25519 keypair.
func GenerateKeypair() (Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return Keypair{}, fmt.Errorf("sealed: generating keypair: %w", err)
	}
	return Keypair{
		PublicKey:  identity.Recipient().String(),
		PrivateKey: identity.String(),
	}, nil
}

// Seal encrypts plaintext to every recipient.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, s.recipients...)
	if err != nil {
		return nil, fmt.Errorf("sealed: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("sealed: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finalizing encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Open decrypts ciphertext produced by Seal.
func (s *Sealer) Open(ciphertext []byte) ([]byte, error) {
	if len(s.identities) == 0 {
		return nil, ErrNoIdentity
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), s.identities...)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	return plaintext, nil
}
