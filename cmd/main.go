package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vegetable-invoicing/pkg/builder"
	"github.com/vegetable-invoicing/pkg/config"
	"github.com/vegetable-invoicing/pkg/export"
	"github.com/vegetable-invoicing/pkg/logging"
	"github.com/vegetable-invoicing/pkg/server"
	"github.com/vegetable-invoicing/pkg/session"
	"github.com/vegetable-invoicing/pkg/store"
)

func main() {
	app := &cli.App{
		Name:  "vegeinvoice",
		Usage: "build, keep and export vegetable sales invoices",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (yaml, toml or json)"},
			&cli.StringFlag{Name: "log-level", Usage: "override log.level"},
			&cli.StringFlag{Name: "storage-driver", Usage: "badger, postgres, redis or memory"},
			&cli.StringFlag{Name: "storage-path", Usage: "badger directory"},
		},
		Commands: []*cli.Command{
			{
				Name:   "session",
				Usage:  "open the interactive invoice builder",
				Action: sessionAction,
			},
			{
				Name:    "list",
				Aliases: []string{"history"},
				Usage:   "list saved invoices, newest first",
				Action:  execAction("history"),
			},
			{
				Name:      "show",
				Usage:     "show a saved invoice",
				ArgsUsage: "ID|NUMBER",
				Action:    execAction("view"),
			},
			{
				Name:      "delete",
				Usage:     "delete a saved invoice",
				ArgsUsage: "ID|NUMBER",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
				},
				Action: execAction("delete"),
			},
			{
				Name:   "next-number",
				Usage:  "print the number the next saved invoice will get",
				Action: execAction("next"),
			},
			{
				Name:      "export",
				Usage:     "write the PDF of a saved invoice",
				ArgsUsage: "ID|NUMBER",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory (default export.output_dir)"},
					&cli.BoolFlag{Name: "upload", Usage: "also upload the PDF to export.s3_bucket"},
				},
				Action: execAction("export"),
			},
			{
				Name:      "print",
				Usage:     "write the printable page of a saved invoice",
				ArgsUsage: "ID|NUMBER",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory (default export.output_dir)"},
				},
				Action: execAction("print"),
			},
			{
				Name:   "vegetables",
				Usage:  "list the vegetable catalog",
				Action: execAction("vegetables"),
			},
			{
				Name:  "serve",
				Usage: "serve the invoice history on a local address",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (default server.addr)"},
				},
				Action: serveAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type env struct {
	cfg      *config.Config
	logger   *logrus.Logger
	store    *store.Store
	exporter *export.Exporter
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("storage-driver"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := c.String("storage-path"); v != "" {
		cfg.Storage.Path = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slot, err := store.OpenSlot(c.Context, cfg.Storage)
	if err != nil {
		logging.LogError(logger, "main", "setup", "opening storage", cfg.Storage.Driver, err)
		return nil, err
	}
	logger.WithFields(logrus.Fields{"driver": cfg.Storage.Driver, "key": cfg.Storage.Key}).Debug("storage opened")

	return &env{
		cfg:      cfg,
		logger:   logger,
		store:    store.New(slot, cfg.Storage.Key, cfg.Invoice.Prefix, logger),
		exporter: export.New(cfg.Export),
	}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		logging.LogError(e.logger, "main", "close", "closing storage", nil, err)
	}
}

func (e *env) session(c *cli.Context) (*session.Session, error) {
	b := builder.New(builder.WithLabel(e.cfg.Invoice.DraftLabel))
	sess := session.New(b, e.store, e.exporter, os.Stdin, os.Stdout, e.logger)
	sess.OutDir = e.cfg.Export.OutputDir
	if c.IsSet("out") {
		sess.OutDir = c.String("out")
	}
	if c.Bool("yes") {
		sess.Confirm = func(string) bool { return true }
	}
	if c.Bool("upload") {
		if e.cfg.Export.S3Bucket == "" {
			return nil, errors.New("--upload needs export.s3_bucket to be set")
		}
		archiver, err := export.NewS3Archiver(e.cfg.Export.S3Region, e.cfg.Export.S3Bucket)
		if err != nil {
			return nil, err
		}
		sess.Archiver = archiver
	}
	return sess, nil
}

func sessionAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()
	sess, err := e.session(c)
	if err != nil {
		return err
	}
	return sess.Run(c.Context)
}

// execAction runs one session command with the positional arguments of c.
func execAction(command string) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.close()
		sess, err := e.session(c)
		if err != nil {
			return err
		}
		line := command
		for _, arg := range c.Args().Slice() {
			line += " " + arg
		}
		return sess.Exec(c.Context, line)
	}
}

func serveAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	addr := e.cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(e.store, e.exporter, e.logger).ListenAndServe(ctx, addr)
}
