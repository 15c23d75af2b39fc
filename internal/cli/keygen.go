package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bilitrack/bilitrack/internal/crypto"
)

// keygenCmd generates a fresh secret sealing key.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an encryption key for cookie secrets",
	Long: `Generate a random AES-256 key, printed as 64 hexadecimal
characters, suitable for the security.encrypt_key configuration value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		cmd.Println(key)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(keygenCmd)
}
