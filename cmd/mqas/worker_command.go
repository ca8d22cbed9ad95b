package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mqas/internal/logging"
	"mqas/internal/queue"
	"mqas/internal/store"
	"mqas/internal/worker"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var (
		heartbeat   float64
		verbose     bool
		verbosity   string
		loggerName  string
		concurrency int
		lang        string
		once        bool
	)

	cmd := &cobra.Command{
		Use:   "worker [CHANNELS...]",
		Short: "Run workers that poll the queue and execute jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if !f.Changed("heartbeat") {
				heartbeat = cfg.Worker.Heartbeat
			}
			if !f.Changed("verbose") {
				verbose = cfg.Worker.Verbose
			}
			if !f.Changed("verbosity") {
				verbosity = cfg.Worker.Verbosity
			}
			if !f.Changed("logger") {
				loggerName = cfg.Worker.Logger
			}
			if !f.Changed("concurrency") {
				concurrency = cfg.Worker.Concurrency
			}
			channels := args
			if len(channels) == 0 {
				channels = cfg.Worker.Channels
			}

			reg, err := ctx.registry(cfg, logger)
			if err != nil {
				return err
			}
			var logFunc queue.LogFunc
			if name := strings.TrimSpace(loggerName); name != "" {
				fn, err := reg.Resolve(name)
				if err != nil {
					return fmt.Errorf("worker logger: %w", err)
				}
				logFunc = worker.RegistryLogFunc(fn)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(runCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			base := queue.ConfigFrom(cfg)
			if lang = strings.TrimSpace(lang); lang != "" {
				base.Lang = lang
			}
			newQueues := func() []*queue.Queue {
				if len(channels) == 0 {
					return []*queue.Queue{queue.New(st, base, queue.WithRegistry(reg), queue.WithLogger(logger))}
				}
				queues := make([]*queue.Queue, 0, len(channels))
				for _, ch := range channels {
					qcfg := base
					qcfg.Channel = ch
					queues = append(queues, queue.New(st, qcfg, queue.WithRegistry(reg), queue.WithLogger(logger)))
				}
				return queues
			}
			opts := []worker.Option{
				worker.WithHeartbeat(time.Duration(heartbeat * float64(time.Second))),
				worker.WithLogger(logger),
				worker.WithVerbose(verbose),
				worker.WithOutput(cmd.OutOrStdout()),
				worker.WithVerbosity(verbosity),
				worker.WithLogFunc(logFunc),
			}

			if once {
				w := worker.New(newQueues(), reg, opts...)
				ran, err := w.RunOnce(runCtx)
				if err != nil {
					return err
				}
				if !ran {
					fmt.Fprintln(cmd.OutOrStdout(), "No job available")
				}
				return nil
			}

			group, err := worker.NewGroup(concurrency, func(int) (*worker.Worker, error) {
				return worker.New(newQueues(), reg, opts...), nil
			})
			if err != nil {
				return err
			}
			if err := group.Start(runCtx); err != nil {
				return err
			}
			logger.Info("workers running",
				logging.String(logging.FieldEventType, "workers_started"),
				logging.Int("concurrency", concurrency),
				logging.Any("channels", channels),
			)
			<-runCtx.Done()
			group.Stop()
			return group.Wait()
		},
	}

	f := cmd.Flags()
	f.Float64VarP(&heartbeat, "heartbeat", "b", 1, "Seconds to sleep between poll cycles")
	f.BoolVarP(&verbose, "verbose", "v", false, "Print job failures")
	f.StringVar(&verbosity, "verbosity", "error", "Job events sent to --logger: error, completed, progress")
	f.StringVar(&loggerName, "logger", "", "Registered function that receives job events")
	f.IntVar(&concurrency, "concurrency", 1, "Number of independent workers")
	f.StringVarP(&lang, "lang", "l", "", "Only claim jobs with this language tag")
	f.BoolVar(&once, "once", false, "Run a single poll cycle and exit")
	return cmd
}
