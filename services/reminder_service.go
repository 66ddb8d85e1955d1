package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"

	"github.com/caulonghn/club-manager/config"
	"github.com/caulonghn/club-manager/repositories"
)

// reminderTemplate — письмо-напоминание об оплате. Держим шаблон в коде,
// чтобы бинарник не зависел от каталога templates на диске.
var reminderTemplate = template.Must(template.New("reminder").Parse(`
<html>
<body>
<p>Chào {{.Name}},</p>
<p>Bạn còn khoản thu chưa thanh toán cho câu lạc bộ: <b>{{.Total}} VND</b>
({{.GameCount}} buổi cầu, {{.EventCount}} sự kiện).</p>
{{if .QRURL}}<p>Quét mã QR để chuyển khoản: <a href="{{.QRURL}}">{{.QRURL}}</a></p>{{end}}
<p>Cảm ơn bạn!</p>
</body>
</html>
`))

type ReminderService interface {
	SendPaymentReminder(ctx context.Context, memberID int) error
}

type reminderService struct {
	cfg        *config.Config
	userRepo   repositories.UserRepository
	balanceSvc BalanceService
	logger     *slog.Logger

	// sendMail подменяется в тестах, по умолчанию — реальная SMTP-отправка.
	sendMail func(to, subject, htmlBody string) error
}

func NewReminderService(
	cfg *config.Config,
	userRepo repositories.UserRepository,
	balanceSvc BalanceService,
	logger *slog.Logger,
) ReminderService {
	s := &reminderService{
		cfg:        cfg,
		userRepo:   userRepo,
		balanceSvc: balanceSvc,
		logger:     logger,
	}
	s.sendMail = s.sendSMTP
	return s
}

func (s *reminderService) SendPaymentReminder(ctx context.Context, memberID int) error {
	if s.cfg.SMTPHost == "" {
		return ErrReminderUnavailable
	}

	balance, err := s.balanceSvc.GetMemberBalance(ctx, memberID)
	if err != nil {
		return err
	}
	if balance.Total <= 0 {
		return fmt.Errorf("%w: member has no outstanding balance", ErrValidationFailed)
	}

	user, err := s.userRepo.GetByMemberID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrReminderUnavailable
		}
		return err
	}

	data := struct {
		Name       string
		Total      int64
		GameCount  int
		EventCount int
		QRURL      string
	}{
		Name:       balance.Member.Name,
		Total:      balance.Total,
		GameCount:  len(balance.UnpaidGames),
		EventCount: len(balance.UnpaidEvents),
		QRURL:      balance.QRURL,
	}

	var body bytes.Buffer
	if err := reminderTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render reminder email: %w", err)
	}

	subject := fmt.Sprintf("Nhắc thanh toán: %d VND", balance.Total)
	if err := s.sendMail(user.Email, subject, body.String()); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send reminder email",
			slog.Int("member_id", memberID), slog.Any("error", err))
		return fmt.Errorf("failed to send reminder email: %w", err)
	}

	s.logger.InfoContext(ctx, "Payment reminder sent",
		slog.Int("member_id", memberID), slog.Int64("total", balance.Total))
	return nil
}

func (s *reminderService) sendSMTP(to, subject, htmlBody string) error {
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)

	msg := []byte("To: " + to + "\r\n" +
		"From: " + s.cfg.SMTPFrom + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		htmlBody + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	tlsconfig := &tls.Config{
		ServerName: s.cfg.SMTPHost,
	}

	var client *smtp.Client
	if s.cfg.SMTPPort == 465 {
		// Прямое TLS-соединение (обычно порт 465)
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("TLS connection failed: %w", err)
		}
		defer conn.Close()
		client, err = smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
	} else {
		// STARTTLS (обычно порт 587)
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("SMTP connection failed: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth failed: %w", err)
	}
	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close DATA: %w", err)
	}
	return nil
}
