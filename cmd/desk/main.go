// Command desk runs the calculator in a desktop window with a persisted
// history panel.
package main

import (
	"context"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/config"
	"go-chi-calculator/internal/history"
	"go-chi-calculator/internal/keypad"
	"go-chi-calculator/internal/observability"
)

func main() {
	ctx := context.Background()

	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	cfg, err := config.Load(getenv)
	if err != nil {
		panic(err)
	}

	if err := observability.InitLogger(true); err != nil {
		panic(err)
	}
	defer observability.SyncLogger()
	logger := observability.Logger

	store, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		logger.Fatal("opening history store failed", zap.String("backend", cfg.Store), zap.Error(err))
	}
	defer closeStore()

	g := &game{
		layout: keypad.Default(),
		logger: logger,
	}
	g.ledger = history.New(store,
		history.WithCapacity(cfg.HistoryCapacity),
		history.WithTimeout(cfg.StoreTimeout),
		history.WithLogger(logger),
		history.WithSink(g),
	)
	g.engine = calculator.NewEngine(
		calculator.WithRecorder(g.ledger),
		calculator.WithDisplay(g),
	)
	g.readout = g.engine.Readout()

	if err := g.ledger.Load(ctx); err != nil {
		logger.Error("loading history failed", zap.Error(err))
	}

	ebiten.SetWindowTitle("Calculator")
	ebiten.SetWindowSize(g.layout.Width*2, g.layout.Height*2)
	ebiten.SetTPS(60)

	if err := ebiten.RunGame(g); err != nil {
		logger.Fatal("window closed with error", zap.Error(err))
	}
}

// getenv keeps history on disk unless CALC_STORE says otherwise.
func getenv(key string) string {
	v := os.Getenv(key)
	if key == "CALC_STORE" && v == "" {
		return config.StoreFile
	}
	return v
}
