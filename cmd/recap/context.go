package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"recap/internal/client"
	"recap/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimSpace(*c.apiFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return cfg.Paths.APIBind
	}
	return ""
}

func (c *commandContext) withClient(fn func(*client.Client) error) error {
	address := c.apiAddress()
	cl, err := client.New(address)
	if err != nil {
		return err
	}
	if err := fn(cl); err != nil {
		if client.IsUnavailable(err) {
			return fmt.Errorf("connect to daemon at %s: daemon not reachable; start it with `recapd`", address)
		}
		return err
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
