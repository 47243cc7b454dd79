package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/config"
	"github.com/boulevardgame/backend/internal/game/engine"
	"github.com/boulevardgame/backend/internal/game/manager"
	"github.com/boulevardgame/backend/internal/game/models"
)

// simulate runs an offline table against the real game manager: one
// scripted host seat plus bot opponents, no HTTP, no MongoDB, no Redis.
// Useful for eyeballing rule changes and bot policy tuning.
func main() {
	bots := flag.Int("bots", 3, "number of bot opponents")
	turns := flag.Int("turns", 20, "turn rounds to play before stopping")
	level := flag.String("level", "MEDIUM", "bot level: EASY, MEDIUM or HARD")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg := &config.Config{}
	cfg.Sync.BotThinkDelay = 10 * time.Millisecond
	cfg.Lobby.MaxPlayers = 8
	cfg.Lobby.MaxBots = 7
	cfg.Lobby.MinimumPlayersToStart = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := engine.NewManualScheduler()
	gm := manager.NewGameManager(ctx, cfg, nil, nil, nil, nil, sched, sugar)

	game, host, err := gm.CreateGame("Arbitre")
	if err != nil {
		sugar.Fatalf("Failed to create game: %v", err)
	}
	for i := 0; i < *bots; i++ {
		if _, err := gm.AddBot(game.Code, host.ID, models.BotLevel(*level)); err != nil {
			sugar.Fatalf("Failed to add bot: %v", err)
		}
	}
	if err := gm.StartGame(game.Code, host.ID); err != nil {
		sugar.Fatalf("Failed to start game: %v", err)
	}
	sugar.Infof("Table %s started with %d bots at level %s", game.Code, *bots, *level)

	for round := 0; round < *turns; round++ {
		playHostTurn(gm, game.Code, host.ID)

		// Let every scheduled bot turn fire; each Advance covers the
		// think delay plus any turn it chains.
		for i := 0; i <= *bots; i++ {
			sched.Advance(time.Second)
		}

		snapshot, err := gm.GetGame(game.Code)
		if err != nil {
			sugar.Fatalf("Game vanished mid-simulation: %v", err)
		}
		printStandings(snapshot)
		if snapshot.Status != models.GameStatusActive {
			sugar.Infof("Game ended with status %s", snapshot.Status)
			return
		}
	}
	sugar.Infof("Simulation finished after %d rounds", *turns)
}

// playHostTurn drives the scripted host seat: roll, never buy, end the
// turn. Jail choices fall back to waiting out the sentence. Rule
// violations are expected when a step does not apply to the current
// phase and are simply skipped.
func playHostTurn(gm *manager.GameManager, code, hostID string) {
	apply := func(t models.ActionType) error {
		return gm.ApplyAction(models.GameAction{
			Type:      t,
			PlayerID:  hostID,
			GameID:    code,
			Timestamp: time.Now(),
		})
	}
	if err := apply(models.ActionTypeRollDice); err != nil {
		// Not a fresh turn: either jailed or not our turn at all.
		if err := apply(models.ActionTypeJailWait); err != nil {
			return
		}
		return
	}
	apply(models.ActionTypePassProperty)
	apply(models.ActionTypeEndTurn)
}

func printStandings(game *models.Game) {
	fmt.Printf("--- tour %d ---\n", game.TurnNumber)
	for _, p := range game.Players {
		seat := "joueur"
		if p.IsBot {
			seat = "bot"
		}
		fmt.Printf("  %-10s (%s) case %2d, solde %d\n", p.Name, seat, p.Position, p.Balance)
	}
}
