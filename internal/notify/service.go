// Package notify delivers post-purchase emails through a Redis-backed
// queue. Delivery is decoupled from the purchase transaction: a
// purchase is durable before any notification is attempted, and a
// notification failure never surfaces to the player.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/goddeus/caixa-premiada-sub004/internal/logger"
	"github.com/goddeus/caixa-premiada-sub004/internal/metrics"
	"github.com/goddeus/caixa-premiada-sub004/internal/purchase"
	"github.com/goddeus/caixa-premiada-sub004/internal/user"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey  = "notifications"
	failedKey = "notifications:failed"

	maxTries   = 3
	retryDelay = 5 * time.Second
)

type Job struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Service struct {
	redis          *redis.Client
	thresholdCents int64
	from           string
	fromName       string
	smtpHost       string
	smtpPort       string
	smtpUser       string
	smtpPass       string
	retryDelay     time.Duration
}

func New(rdb *redis.Client, thresholdCents int64, fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass string) *Service {
	return &Service{
		redis:          rdb,
		thresholdCents: thresholdCents,
		from:           fromEmail,
		fromName:       fromName,
		smtpHost:       smtpHost,
		smtpPort:       smtpPort,
		smtpUser:       smtpUser,
		smtpPass:       smtpPass,
		retryDelay:     retryDelay,
	}
}

// PurchaseCompleted queues a congratulation email when any single
// prize in the purchase reaches the big-win threshold. Demo-mode wins
// are not announced.
func (s *Service) PurchaseCompleted(ctx context.Context, u *user.User, res *purchase.Result) {
	if s == nil || s.redis == nil || u == nil {
		return
	}
	if u.AccountMode == user.ModeDemo {
		return
	}

	var best int64
	for _, o := range res.Outcomes {
		if !o.Illustrative && o.ValueCents > best {
			best = o.ValueCents
		}
	}
	if best < s.thresholdCents {
		return
	}

	subject := "Você ganhou um prêmio!"
	body := fmt.Sprintf(`Olá %s,

Parabéns! Uma das suas caixas rendeu um prêmio de R$ %s.

O valor já está disponível no seu saldo.

- %s`, u.Name, formatReais(best), s.fromName)

	if err := s.enqueue(ctx, u.Email, u.Name, subject, body); err != nil {
		logger.Error("failed to queue big-win notification",
			"user_id", u.ID, "purchase_id", res.PurchaseID, "error", err)
		metrics.RecordNotification("big_win", "queue_failed")
		return
	}
	metrics.RecordNotification("big_win", "queued")
}

func (s *Service) enqueue(ctx context.Context, to, name, subject, body string) error {
	job := Job{
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.LPush(ctx, queueKey, data).Err()
}

// Start runs the delivery worker until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("notification worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("notification worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Error("bad notification payload", "error", err)
		return
	}

	job.Tries++
	if err := s.sendNow(job); err != nil {
		logger.Error("failed to send notification",
			"to", job.To, "attempt", job.Tries, "error", err)

		if job.Tries < maxTries {
			s.requeueLater(job)
			return
		}

		metrics.RecordNotification("big_win", "failed")
		s.saveFailed(job, err)
		return
	}

	metrics.RecordNotification("big_win", "sent")
	logger.Info("notification sent", "to", job.To)
}

// requeueLater schedules a retry without holding up the worker loop,
// so a flaky SMTP server does not stall delivery of later jobs.
func (s *Service) requeueLater(job Job) {
	data, _ := json.Marshal(job)
	time.AfterFunc(s.retryDelay, func() {
		if err := s.redis.LPush(context.Background(), queueKey, data).Err(); err != nil {
			logger.Error("failed to requeue notification", "to", job.To, "error", err)
		}
	})
}

func (s *Service) sendNow(job Job) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(job Job, cause error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": cause.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedKey, data)
	logger.Error("notification moved to failed queue", "to", job.To)
}

// QueueLength reports the pending queue depth and refreshes the gauge.
func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.NotificationQueueLength.Set(float64(length))
	return length
}

func formatReais(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d,%02d", sign, cents/100, cents%100)
}
