// Package label renders scannable product labels.
package label

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 300

// QRCode encodes sku as a PNG QR code of size x size pixels. Scanning the
// label at the till yields the SKU back.
func QRCode(sku string, size int) ([]byte, error) {
	if sku == "" {
		return nil, fmt.Errorf("qr code: empty sku")
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(sku, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr code for %s: %w", sku, err)
	}
	return png, nil
}

func Filename(sku string) string {
	return sku + "-qrcode.png"
}
