package state

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"vbook/config"
	"vbook/content"
	"vbook/markup"
	"vbook/node"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
		Log:   zap.NewNop(),
	}
}

func (e *LocalEnv) config() *config.Config {
	if e.Cfg == nil {
		// configuration template is embedded and always valid
		cfg, err := config.LoadConfiguration("")
		if err != nil {
			panic(err)
		}
		e.Cfg = cfg
	}
	return e.Cfg
}

// Tree returns node tree shared by the program. Resource types from
// configuration are added to the built-in registry.
func (e *LocalEnv) Tree() (*node.Tree, error) {
	e.treeOnce.Do(func() {
		types := node.NewRegistry()
		if err := types.AddAll(e.config().Resources.Types); err != nil {
			e.treeErr = fmt.Errorf("unable to register resource types: %w", err)
			return
		}
		e.tree = node.NewTree(types, e.Log.Named("node"))
	})
	return e.tree, e.treeErr
}

// MarkupOptions returns markup engine settings from configuration.
func (e *LocalEnv) MarkupOptions() markup.Options {
	cfg := e.config().Markup
	return markup.Options{
		HighlightStyle:   cfg.HighlightStyle,
		HighlightClasses: cfg.HighlightClasses,
		TabWidth:         cfg.TabWidth,
		QuizButton:       cfg.QuizButton,
		Verbose:          cfg.Verbose,
	}
}

// Parsers returns content parsers shared by the program.
func (e *LocalEnv) Parsers() *content.Registry {
	e.parsersOnce.Do(func() {
		log := e.Log.Named("content")
		eng := markup.New(markup.NewRegistry(), e.MarkupOptions(), log.Named("markup"))
		e.parsers = content.NewRegistry(eng, &e.config().Content, log)
	})
	return e.parsers
}
