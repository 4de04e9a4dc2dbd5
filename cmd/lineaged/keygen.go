// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

// keygenCmd generates a random 256-bit key and prints it hex-encoded.
// Nothing in this binary reads the key back: serve's encryption
// substrate always wraps data keys through the AWS KMS client.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "generate a random 256-bit key, hex-encoded to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		fmt.Println(hex.EncodeToString(key))
		return nil
	},
}
