package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/memrook/askdocs/internal/core"
)

// program adapts the module app to the system service manager.
type program struct {
	cfgPath string
	app     *core.App
}

// Start implements service.Interface. Service managers expect Start to
// return promptly; module goroutines carry the actual work.
func (p *program) Start(service.Service) error {
	app, _, _, err := buildApp(p.cfgPath, nil)
	if err != nil {
		return err
	}
	if err := app.Start(); err != nil {
		return err
	}
	p.app = app
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(service.Service) error {
	if p.app != nil {
		p.app.Stop()
	}
	return nil
}

// serviceCmd manages the bot as a system service (systemd, launchd,
// Windows services) via kardianos/service.
func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service install|uninstall|start|stop|run",
		Short:     "Run or manage the bot as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")

			svcConfig := &service.Config{
				Name:        "askdocs",
				DisplayName: "askdocs documentation bot",
				Description: "Telegram bot answering questions over a document corpus",
				Arguments:   []string{"service", "run"},
			}
			if cfgPath != "" {
				svcConfig.Arguments = append(svcConfig.Arguments, "--config", cfgPath)
			}

			prg := &program{cfgPath: cfgPath}
			svc, err := service.New(prg, svcConfig)
			if err != nil {
				return err
			}

			action := args[0]
			if action == "run" {
				return svc.Run()
			}

			if err := service.Control(svc, action); err != nil {
				return err
			}
			fmt.Printf("service %s: done\n", action)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
