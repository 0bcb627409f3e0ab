package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuentas-labs/cuentas/internal/security"
)

func init() {
	rootCmd.AddCommand(keygenCmd)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a card encryption key",
	Long: `Print a fresh random key for encrypting stored card data.

Put it in the [security] section of config.toml as card_key, or export
it as CUENTAS_CARD_KEY. Losing the key makes stored cards unreadable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := security.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}
