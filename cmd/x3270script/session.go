package main

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/pslog"
	"pkt.systems/x3270script/backend"
	"pkt.systems/x3270script/command"
	"pkt.systems/x3270script/core"
	"pkt.systems/x3270script/internal/appconfig"
	"pkt.systems/x3270script/internal/logx"
)

// newBackend is replaced in tests.
var newBackend = selectBackend

func selectBackend(cfg appconfig.Config, logger pslog.Logger) (core.Backend, error) {
	switch cfg.Backend.Type {
	case appconfig.BackendProcess:
		return backend.NewProcess(backend.ProcessConfig{
			BinaryPath: cfg.Backend.Binary,
			Args:       cfg.Backend.Args,
			Env:        cfg.Backend.EnvList(),
			Logger:     logger,
		}), nil
	case appconfig.BackendSocket:
		return backend.NewSocket(backend.SocketConfig{
			Host:          cfg.Backend.Host,
			Port:          cfg.Backend.Port,
			RetryInterval: cfg.Backend.RetryInterval(),
			Logger:        logger,
		}), nil
	case appconfig.BackendEnv:
		return backend.NewSocketFromEnv(backend.SocketConfig{
			Host:          cfg.Backend.Host,
			RetryInterval: cfg.Backend.RetryInterval(),
			Logger:        logger,
		}, nil), nil
	default:
		return nil, fmt.Errorf("unsupported backend.type %q", cfg.Backend.Type)
	}
}

func sessionConfig(cfg appconfig.Config, logger pslog.Logger) (core.Config, error) {
	require, err := core.ParseRequire(cfg.Session.Require)
	if err != nil {
		return core.Config{}, err
	}
	flags, err := command.ParseConnectFlags(cfg.Session.ConnectFlags)
	if err != nil {
		return core.Config{}, err
	}
	return core.Config{
		Name:             cfg.Session.Name,
		Origin:           cfg.Session.Origin,
		Timeout:          cfg.Session.Timeout(),
		StartTimeout:     cfg.Session.StartTimeout(),
		HandshakeTimeout: cfg.Session.HandshakeTimeout(),
		HistorySize:      cfg.Session.HistorySize,
		ExceptionMode:    cfg.Session.ExceptionMode,
		Require:          require,
		ConnectFlags:     flags,
		Charset:          cfg.Dump.Charset,
		Logger:           logger,
	}, nil
}

// cliSession is a started session plus the teardown matching its backend.
type cliSession struct {
	*core.Session
	cfg appconfig.Config
}

// openSession loads the config, starts a session and, when requested,
// connects it to a host.
func openSession(ctx context.Context, opts *globalOptions) (*cliSession, error) {
	cfg, err := appconfig.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.backend != "" {
		cfg.Backend.Type = opts.backend
		if err := appconfig.Validate(cfg); err != nil {
			return nil, err
		}
	}
	logger := logx.Ctx(ctx)
	b, err := newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	scfg, err := sessionConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	s, err := core.NewSession(b, scfg)
	if err != nil {
		return nil, err
	}
	if err := check(s.Start(ctx)); err != nil {
		return nil, err
	}
	cs := &cliSession{Session: s, cfg: cfg}
	if opts.connect != "" {
		if err := check(s.Connect(ctx, opts.connect, "", nil)); err != nil {
			cs.close(ctx)
			return nil, err
		}
	}
	return cs, nil
}

// close ends a spawned emulator with Quit; an emulator reached over a
// socket keeps running.
func (s *cliSession) close(ctx context.Context) {
	logger := logx.Ctx(ctx)
	if s.cfg.Backend.Type == appconfig.BackendProcess {
		if err := s.Quit(ctx); err != nil {
			logger.Warn("emulator quit failed", "err", err)
		}
		return
	}
	if err := s.Close(); err != nil {
		logger.Warn("session close failed", "err", err)
	}
}

// check folds both failure reporting styles into an error.
func check(res *core.IoResult, err error) error {
	if err != nil {
		return err
	}
	if res != nil && !res.Success {
		return &core.CommandError{Kind: core.CommandErrorCommand, Op: res.Command, Result: res, Err: failureCause(res)}
	}
	return nil
}

func failureCause(res *core.IoResult) error {
	if res.Err != nil {
		return res.Err
	}
	return errors.New("command failed")
}
