package cli

import (
	"context"
	"strings"

	"github.com/matzehuels/monopub/pkg/config"
	"github.com/matzehuels/monopub/pkg/npmrc"
	"github.com/matzehuels/monopub/pkg/registry"
	"github.com/matzehuels/monopub/pkg/workspace"
)

// environment is everything a command learns from config files and the
// process environment before touching any package.
type environment struct {
	Config       *config.Config
	Npmrc        npmrc.Config
	RegistryURL  string
	Token        string
	GlobalConfig string
	UserConfig   string
}

// loadEnvironment reads monopub.toml and the .npmrc chain for basePath and
// resolves the registry: flag, then monopub.toml, then .npmrc, then the
// public registry. The auth token is looked up under the registry's
// nerf-dart key.
func (c *CLI) loadEnvironment(ctx context.Context, basePath, registryFlag string) (*environment, error) {
	cfg, err := config.Find(basePath)
	if err != nil {
		return nil, err
	}
	lookup := c.lookupEnv()
	rc, err := npmrc.Load(npmrc.CandidatePaths(basePath, lookup), lookup)
	if err != nil {
		return nil, err
	}

	url := registry.DefaultURL
	switch {
	case registryFlag != "":
		url = registryFlag
	case cfg.Registry != "":
		url = cfg.Registry
	case rc.Registry() != "":
		url = rc.Registry()
	}

	env := &environment{
		Config:      cfg,
		Npmrc:       rc,
		RegistryURL: url,
		Token:       rc.Get(registry.Identifier(url) + ":_authToken"),
	}
	env.GlobalConfig, _ = lookup("NPM_CONFIG_GLOBALCONFIG")
	env.UserConfig, _ = lookup("NPM_CONFIG_USERCONFIG")

	loggerFromContext(ctx).Debug("environment", "registry", url, "config", cfg.Path, "token", env.Token != "")
	return env, nil
}

// client opens the registry handle for env. Callers must Close it.
func (env *environment) client() *registry.Client {
	return registry.New(registry.Options{URL: env.RegistryURL, Token: env.Token})
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadWorkspace resolves the package layout of basePath. Dependency cycles
// are reported as warnings; publishing still proceeds in a best-effort
// order.
func loadWorkspace(ctx context.Context, basePath string) (*workspace.Context, error) {
	logger := loggerFromContext(ctx)
	wctx, err := (&workspace.Resolver{Logger: logger}).Resolve(basePath)
	if err != nil {
		return nil, err
	}
	for _, cycle := range wctx.Cycles {
		logger.Warnf("dependency cycle: %s", strings.Join(cycle, " -> "))
	}
	logger.Debug("workspace", "root", wctx.Root.Dir, "kind", wctx.Kind, "source", wctx.Source, "packages", len(wctx.Packages))
	return wctx, nil
}
