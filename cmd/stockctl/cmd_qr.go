package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rl1809/stockflow/internal/adapter/label"
)

func (c *cli) qrCmd() *cobra.Command {
	var (
		output string
		size   int
	)
	cmd := &cobra.Command{
		Use:   "qr <sku>",
		Short: "Write the QR label PNG for a SKU",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sku := args[0]
			png, err := label.QRCode(sku, size)
			if err != nil {
				return err
			}
			if output == "" {
				output = label.Filename(sku)
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <sku>-qrcode.png)")
	cmd.Flags().IntVar(&size, "size", label.DefaultSize, "image size in pixels")
	return cmd
}
