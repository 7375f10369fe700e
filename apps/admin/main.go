package main

import (
	"log"
	"os"

	"github.com/trezcool/clotrack/core"
	"github.com/trezcool/clotrack/core/outcome"
	"github.com/trezcool/clotrack/core/user"
	emailsvc "github.com/trezcool/clotrack/services/email"
	logsvc "github.com/trezcool/clotrack/services/logger"
	"github.com/trezcool/clotrack/storage/database"
	"github.com/trezcool/clotrack/storage/database/sqlxrepos"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	if err = core.ParseEmailTemplates(conf); err != nil {
		logger.Fatal("parsing email templates", err)
	}

	validate, _ := core.NewValidator()
	usrRepo := sqlxrepos.NewUserRepository(db)

	// start CLI
	cli := commandLine{
		conf:   conf,
		db:     db,
		usrSvc: user.NewService(usrRepo, validate),
		outcomeSvc: outcome.NewService(
			sqlxrepos.NewOutcomeRepository(db),
			usrRepo,
			outcome.NewMailNotifier(mailSvc, conf.Notification.Timeout, logger),
			logger,
		),
		in:  os.Stdin,
		out: os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Close()

	if err != nil {
		if err != errHelp {
			log.Printf("error: %v", err)
		}
		os.Exit(1)
	}
}
