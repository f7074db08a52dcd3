package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/akratov/softcall/pkg/invite"
)

// Config конфигурация демо-звонилки, читается из окружения
type Config struct {
	// Target SIP URI вызываемой стороны
	Target string `env:"SOFTCALL_TARGET" envDefault:"sip:service@127.0.0.1:5080"`
	// From локальный SIP URI
	From string `env:"SOFTCALL_FROM" envDefault:"sip:softcall@127.0.0.1"`
	// Username и Password для digest аутентификации (опционально)
	Username string `env:"SOFTCALL_AUTH_USER"`
	Password string `env:"SOFTCALL_AUTH_PASS"`
	// LogLevel уровень логирования
	LogLevel string `env:"SOFTCALL_LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		logrus.WithError(err).Fatal("failed to parse configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	log := logrus.WithField("component", "softcall")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("call failed")
	}
}

func run(ctx context.Context, cfg Config, log *logrus.Entry) error {
	ua, err := sipgo.NewUA(sipgo.WithUserAgent("SoftCall/1.0"))
	if err != nil {
		return err
	}
	defer ua.Close()

	client, err := sipgo.NewClient(ua)
	if err != nil {
		return err
	}

	req, err := buildInvite(cfg)
	if err != nil {
		return err
	}

	tx, err := client.TransactionRequest(ctx, req)
	if err != nil {
		return err
	}

	// Отправка перевыставленного запроса охранником аутентификации:
	// новая транзакция, ответы пойдут в тот же диспетчер не нужны —
	// для демо достаточно одной попытки
	send := func(r *sip.Request) error {
		_, err := client.TransactionRequest(ctx, r)
		return err
	}

	delegate := invite.Delegate{
		OnTrying: func(res *sip.Response) {
			log.Info("trying")
		},
		OnProgress: func(res *sip.Response, sess invite.Session) {
			log.WithField("status", res.StatusCode).Info("call progress")
		},
		OnAccept: func(res *sip.Response, sess invite.Session) {
			log.WithField("dialog_id", sess.Key().String()).Info("call accepted")
			ack, err := sess.Ack()
			if err != nil {
				log.WithError(err).Error("failed to build ACK")
				return
			}
			if err := client.WriteRequest(ack, sipgo.ClientRequestAddVia); err != nil {
				log.WithError(err).Error("failed to send ACK")
			}
		},
		OnRedirect: func(res *sip.Response) {
			log.WithField("status", res.StatusCode).Warn("call redirected")
		},
		OnReject: func(res *sip.Response) {
			log.WithField("status", res.StatusCode).Warn("call rejected")
		},
	}

	opts := []invite.Option{invite.WithLogger(log)}
	if cfg.Username != "" {
		opts = append(opts, invite.WithGuard(
			invite.NewDigestGuard(req, cfg.Username, cfg.Password, send)))
	}

	disp := invite.NewDispatcher(invite.NewClientTx(client, req, tx), delegate, opts...)
	defer disp.Close()

	// По сигналу отменяем исходящий вызов; отмена сериализована с
	// обработкой ответов внутри диспетчера
	go func() {
		<-ctx.Done()
		if err := disp.Cancel(); err != nil {
			log.WithError(err).Debug("cancel after final response")
		}
	}()

	return disp.Run(context.Background())
}

// buildInvite строит исходящий INVITE из конфигурации
func buildInvite(cfg Config) (*sip.Request, error) {
	var target sip.Uri
	if err := sip.ParseUri(cfg.Target, &target); err != nil {
		return nil, err
	}

	var from sip.Uri
	if err := sip.ParseUri(cfg.From, &from); err != nil {
		return nil, err
	}

	req := sip.NewRequest(sip.INVITE, target)

	req.AppendHeader(&sip.FromHeader{
		Address: from,
		Params:  sip.NewParams().Add("tag", sip.RandString(8)),
	})
	req.AppendHeader(&sip.ToHeader{Address: target, Params: sip.NewParams()})

	callID := sip.CallIDHeader(uuid.NewString())
	req.AppendHeader(&callID)

	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})

	maxForwards := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxForwards)

	req.AppendHeader(sip.NewHeader("Contact", "<"+from.String()+">"))

	return req, nil
}
