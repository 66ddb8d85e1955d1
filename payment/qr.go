// Package payment строит ссылки на QR-изображения для банковского перевода.
// Генерация самой картинки делегирована сервису img.vietqr.io — мы только
// собираем URL с суммой и назначением платежа.
package payment

import (
	"fmt"
	"net/url"
)

// QRConfig — реквизиты счёта клуба, на который собираются взносы.
type QRConfig struct {
	BankID        string // BIN или код банка, например "970436"
	AccountNo     string
	AccountName   string
	Template      string // шаблон картинки vietqr: "compact2", "qr_only" и т.п.
}

const vietQRBase = "https://img.vietqr.io/image"

// Configured сообщает, заданы ли минимальные реквизиты для построения ссылки.
func (c QRConfig) Configured() bool {
	return c.BankID != "" && c.AccountNo != ""
}

// Link возвращает URL QR-картинки на перевод amount донгов с назначением
// платежа description. Нулевая или отрицательная сумма кодируется без amount —
// плательщик введёт сумму сам.
func (c QRConfig) Link(amount int64, description string) string {
	qrURL := fmt.Sprintf("%s/%s-%s-%s.png", vietQRBase, c.BankID, c.AccountNo, c.Template)

	params := url.Values{}
	if amount > 0 {
		params.Set("amount", fmt.Sprintf("%d", amount))
	}
	if description != "" {
		params.Set("addInfo", description)
	}
	if c.AccountName != "" {
		params.Set("accountName", c.AccountName)
	}
	if encoded := params.Encode(); encoded != "" {
		return qrURL + "?" + encoded
	}
	return qrURL
}
