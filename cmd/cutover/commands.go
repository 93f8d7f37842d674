package main

import (
	"runtime/debug"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/log"
	ctlrZap "sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/nginxinc/gateway-cutover/internal/config"
)

const (
	routeFlag  = "route"
	routeUsage = `The namespaced name of the route being migrated. Must be of the form: NAMESPACE/NAME. ` +
		`The persisted cutover state and all cluster reads are scoped to it.`
	kubeconfigFlag         = "kubeconfig"
	legacyURLFlag          = "legacy-url"
	gatewayURLFlag         = "gateway-url"
	legacyClassFlag        = "legacy-class"
	gatewayNameFlag        = "gateway-name"
	probeTimeoutFlag       = "probe-timeout"
	probeConcurrencyFlag   = "probe-concurrency"
	verifyAttemptsFlag     = "verify-attempts"
	fetchTimeoutFlag       = "fetch-timeout"
	sourceCacheTTLFlag     = "source-cache-ttl"
	metricsOutputFlag      = "metrics-output"
	insecureSkipVerifyFlag = "insecure-skip-verify"
)

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cutover",
		Short:         "Safely migrate a routing scope from Ingress to Gateway API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	return rootCmd
}

// commandFlags holds the flag values shared by all subcommands.
type commandFlags struct {
	route       namespacedNameValue
	legacyURL   stringValidatingValue
	gatewayURL  stringValidatingValue
	legacyClass stringValidatingValue
	gatewayName stringValidatingValue

	probeConcurrency intValidatingValue
	verifyAttempts   intValidatingValue

	kubeconfig         string
	metricsOutput      string
	probeTimeout       time.Duration
	fetchTimeout       time.Duration
	sourceCacheTTL     time.Duration
	insecureSkipVerify bool
}

func newCommandFlags() *commandFlags {
	return &commandFlags{
		legacyURL: stringValidatingValue{
			validator: validateURL,
		},
		gatewayURL: stringValidatingValue{
			validator: validateURL,
		},
		legacyClass: stringValidatingValue{
			validator: validateResourceName,
		},
		gatewayName: stringValidatingValue{
			validator: validateResourceName,
		},
		probeConcurrency: intValidatingValue{
			validator: validatePositive,
			value:     4,
		},
		verifyAttempts: intValidatingValue{
			validator: validatePositive,
			value:     5,
		},
		probeTimeout: 5 * time.Second,
		fetchTimeout: 10 * time.Second,
	}
}

// register adds the shared flags to cmd. The probe entry point flags are
// only marked required when the command actually issues probe requests.
func (f *commandFlags) register(cmd *cobra.Command, requireProbeURLs bool) {
	cmd.Flags().Var(
		&f.route,
		routeFlag,
		routeUsage,
	)
	utilruntime.Must(cmd.MarkFlagRequired(routeFlag))

	cmd.Flags().StringVar(
		&f.kubeconfig,
		kubeconfigFlag,
		"",
		"The path to the kubeconfig file. If not set, the in-cluster configuration is used.",
	)

	cmd.Flags().Var(
		&f.legacyURL,
		legacyURLFlag,
		"The base URL of the entry point serving the legacy (Ingress) routing rules.",
	)

	cmd.Flags().Var(
		&f.gatewayURL,
		gatewayURLFlag,
		"The base URL of the entry point serving the gateway (HTTPRoute) routing rules.",
	)

	if requireProbeURLs {
		utilruntime.Must(cmd.MarkFlagRequired(legacyURLFlag))
		utilruntime.Must(cmd.MarkFlagRequired(gatewayURLFlag))
	}

	cmd.Flags().Var(
		&f.legacyClass,
		legacyClassFlag,
		"Only include Ingresses with this ingressClassName in the legacy rule source. "+
			"If not set, all Ingresses in the route's Namespace are included.",
	)

	cmd.Flags().Var(
		&f.gatewayName,
		gatewayNameFlag,
		"Only include HTTPRoutes attached to this Gateway in the gateway rule source. "+
			"If not set, all HTTPRoutes in the route's Namespace are included.",
	)

	cmd.Flags().DurationVar(
		&f.probeTimeout,
		probeTimeoutFlag,
		5*time.Second,
		"The timeout of a single probe request. A request that exceeds it is reported as a mismatch.",
	)

	cmd.Flags().Var(
		&f.probeConcurrency,
		probeConcurrencyFlag,
		"The maximum number of request cases probed at once.",
	)

	cmd.Flags().Var(
		&f.verifyAttempts,
		verifyAttemptsFlag,
		"The maximum number of consecutive failed verification passes before the failure becomes fatal.",
	)

	cmd.Flags().DurationVar(
		&f.fetchTimeout,
		fetchTimeoutFlag,
		10*time.Second,
		"The timeout of a single rule source fetch.",
	)

	cmd.Flags().DurationVar(
		&f.sourceCacheTTL,
		sourceCacheTTLFlag,
		0,
		"How long a fetched set of routing rules may be reused. Zero disables caching.",
	)

	cmd.Flags().StringVar(
		&f.metricsOutput,
		metricsOutputFlag,
		"",
		"The path of a file to write the run's metrics to in the Prometheus text format. "+
			"If not set, metrics are not written.",
	)

	cmd.Flags().BoolVar(
		&f.insecureSkipVerify,
		insecureSkipVerifyFlag,
		false,
		"Disable TLS verification for probe requests. "+
			"Needed when the entry points serve a self-signed certificate.",
	)
}

func (f *commandFlags) config(logger logr.Logger) config.Config {
	return config.Config{
		Logger:             logger,
		Scope:              f.route.value,
		Kubeconfig:         f.kubeconfig,
		LegacyBaseURL:      f.legacyURL.value,
		GatewayBaseURL:     f.gatewayURL.value,
		LegacyIngressClass: f.legacyClass.value,
		GatewayName:        f.gatewayName.value,
		ProbeTimeout:       f.probeTimeout,
		ProbeConcurrency:   f.probeConcurrency.value,
		VerifyAttempts:     f.verifyAttempts.value,
		FetchTimeout:       f.fetchTimeout,
		SourceCacheTTL:     f.sourceCacheTTL,
		MetricsOutput:      f.metricsOutput,
		InsecureSkipVerify: f.insecureSkipVerify,
	}
}

func createPrepareCommand() *cobra.Command {
	flags := newCommandFlags()

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Initialize the cutover state of a route and confirm both rule sources are queryable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newRunner(flags.config(setupLogger("prepare")))
			if err != nil {
				return err
			}

			return runner.prepare(cmd.Context())
		},
	}

	flags.register(cmd, false)

	return cmd
}

func createVerifyCommand() *cobra.Command {
	flags := newCommandFlags()

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run one verification pass comparing the legacy and gateway routing rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newRunner(flags.config(setupLogger("verify")))
			if err != nil {
				return err
			}

			return runner.verify(cmd.Context())
		},
	}

	flags.register(cmd, true)

	return cmd
}

func createCutoverCommand() *cobra.Command {
	flags := newCommandFlags()

	cmd := &cobra.Command{
		Use:   "cutover",
		Short: "Disable the legacy rule source and check for post-cutover regressions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newRunner(flags.config(setupLogger("cutover")))
			if err != nil {
				return err
			}

			return runner.cutover(cmd.Context())
		},
	}

	flags.register(cmd, true)

	return cmd
}

func createRollbackCommand() *cobra.Command {
	flags := newCommandFlags()

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Re-enable the legacy rule source for a route",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newRunner(flags.config(setupLogger("rollback")))
			if err != nil {
				return err
			}

			return runner.rollback(cmd.Context())
		},
	}

	flags.register(cmd, false)

	return cmd
}

func setupLogger(operation string) logr.Logger {
	atom := zap.NewAtomicLevel()

	logger := ctlrZap.New(ctlrZap.Level(atom))
	klog.SetLogger(logger)
	log.SetLogger(logger)

	commit, date, dirty := getBuildInfo()
	logger.Info(
		"Starting gateway-cutover",
		"operation", operation,
		"version", version,
		"commit", commit,
		"date", date,
		"dirty", dirty,
	)

	return logger
}

func getBuildInfo() (commitHash string, commitTime string, dirtyBuild string) {
	commitHash = "unknown"
	commitTime = "unknown"
	dirtyBuild = "unknown"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			commitHash = kv.Value
		case "vcs.time":
			commitTime = kv.Value
		case "vcs.modified":
			dirtyBuild = kv.Value
		}
	}

	return
}
