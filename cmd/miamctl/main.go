// Command miamctl is the terminal front end of the ordering service: the
// customer flow (menu, cart, checkout, order history) and the staff order
// board.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/client"
	"github.com/safar/monmiam/internal/config"
	"github.com/safar/monmiam/internal/logging"
	"github.com/safar/monmiam/internal/ui"
)

const usage = `usage: miamctl <commande> [options]

client:
  login      -email -password
  register   -email -nom -telephone -password
  logout
  menu
  order      -item ID:QTE ... -service livraison|emporter -paiement especes|en_ligne
             [-heure HH:MM, défaut +30 min] [-batiment B] [-telephone T]
  history    [-limit N] [-cursor C]
  receipt    -id N [-o fichier.pdf]

personnel:
  board      [-statut S]
  advance    -id N
  cancel     -id N
  historique -id N
  admin      <articles|employes|promotions|evenements|reclamations|parametres> <list|delete|toggle> [-id N] [-field F]
`

type app struct {
	cfg    *config.Config
	api    *client.Client
	term   *ui.Terminal
	logger *zap.Logger
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	term := ui.NewTerminal(os.Stdin, os.Stdout)
	api := client.NewFromConfig(cfg.Client, client.NewFileTokenStore(cfg.Client.TokenFile),
		client.WithLogger(logger.Named("client")))
	api.OnUnauthorized(func() { term.Navigate(ui.RouteLogin) })

	a := &app{cfg: cfg, api: api, term: term, logger: logger}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		// notifications already told the user what went wrong
		logger.Debug("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		return a.logout()
	case "menu":
		return a.menu(ctx)
	case "order":
		return a.order(ctx, args)
	case "history":
		return a.history(ctx, args)
	case "receipt":
		return a.receipt(ctx, args)
	case "board":
		return a.board(ctx, args)
	case "advance", "cancel":
		return a.transition(ctx, cmd, args)
	case "historique":
		return a.statusHistory(ctx, args)
	case "admin":
		return a.admin(ctx, args)
	default:
		return errUsage
	}
}
