package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	"sigs.k8s.io/yaml"

	"github.com/nginxinc/gateway-cutover/internal/config"
	"github.com/nginxinc/gateway-cutover/internal/cutover"
	"github.com/nginxinc/gateway-cutover/internal/metrics"
	"github.com/nginxinc/gateway-cutover/internal/probe"
	"github.com/nginxinc/gateway-cutover/internal/rules/source"
)

// fetchAttempts is the number of attempts per rule source fetch.
const fetchAttempts = 3

// runner executes one cutover operation against the cluster and renders the
// outcome for the operator.
type runner struct {
	controller  *cutover.Controller
	registry    *prometheus.Registry
	logger      logr.Logger
	out         io.Writer
	metricsPath string
}

func newRunner(conf config.Config) (*runner, error) {
	restConfig, err := clientcmd.BuildConfigFromFlags("", conf.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load the Kubernetes configuration: %w", err)
	}

	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(gatewayv1.Install(scheme))

	k8sClient, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create the Kubernetes client: %w", err)
	}

	legacy := source.NewRetryingSource(
		source.NewLegacySource(
			k8sClient,
			conf.Logger,
			conf.Scope.Namespace,
			conf.LegacyIngressClass,
			conf.FetchTimeout,
		),
		conf.Logger,
		source.DefaultBackoff,
		fetchAttempts,
		conf.SourceCacheTTL,
	)

	gateway := source.NewRetryingSource(
		source.NewGatewaySource(
			k8sClient,
			conf.Logger,
			conf.Scope.Namespace,
			conf.GatewayName,
			conf.FetchTimeout,
		),
		conf.Logger,
		source.DefaultBackoff,
		fetchAttempts,
		conf.SourceCacheTTL,
	)

	prober := probe.NewProber(
		probe.Settings{
			LegacyBaseURL:      conf.LegacyBaseURL,
			GatewayBaseURL:     conf.GatewayBaseURL,
			Timeout:            conf.ProbeTimeout,
			Concurrency:        conf.ProbeConcurrency,
			InsecureSkipVerify: conf.InsecureSkipVerify,
		},
		conf.Logger,
	)

	control := source.NewIngressControl(k8sClient, conf.Logger, conf.Scope.Namespace, conf.LegacyIngressClass)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCutoverCollector(map[string]string{"scope": conf.Scope.String()})
	if err := metrics.Register(registry, collector); err != nil {
		return nil, fmt.Errorf("failed to register the metrics collectors: %w", err)
	}

	controller := cutover.NewController(
		cutover.Config{
			Logger:            conf.Logger,
			Scope:             conf.Scope,
			MaxVerifyAttempts: conf.VerifyAttempts,
		},
		legacy,
		gateway,
		prober,
		control,
		cutover.NewConfigMapStore(k8sClient),
		collector,
	)

	return &runner{
		controller:  controller,
		registry:    registry,
		logger:      conf.Logger,
		out:         os.Stdout,
		metricsPath: conf.MetricsOutput,
	}, nil
}

func (r *runner) prepare(ctx context.Context) error {
	defer r.dumpMetrics()

	status, err := r.controller.Prepare(ctx)
	if err != nil {
		return err
	}

	return r.printYAML(status)
}

// verify prints the verification report even when the pass failed, so the
// operator sees the mismatches alongside the non-zero exit.
func (r *runner) verify(ctx context.Context) error {
	defer r.dumpMetrics()

	report, verifyErr := r.controller.Verify(ctx)
	if report != nil {
		if err := r.printYAML(report); err != nil {
			return err
		}
	}

	return verifyErr
}

func (r *runner) cutover(ctx context.Context) error {
	defer r.dumpMetrics()

	status, cutErr := r.controller.Cutover(ctx)
	if status != nil {
		if err := r.printYAML(status); err != nil {
			return err
		}
	}

	return cutErr
}

func (r *runner) rollback(ctx context.Context) error {
	defer r.dumpMetrics()

	status, err := r.controller.Rollback(ctx)
	if err != nil {
		return err
	}

	return r.printYAML(status)
}

// dumpMetrics writes the metrics of the run to the configured file. It runs
// even when the operation failed, and never masks the operation error.
func (r *runner) dumpMetrics() {
	if r.metricsPath == "" {
		return
	}

	f, err := os.Create(r.metricsPath)
	if err != nil {
		r.logger.Error(err, "Failed to create the metrics output file", "path", r.metricsPath)
		return
	}
	defer f.Close()

	if err := metrics.WriteText(r.registry, f); err != nil {
		r.logger.Error(err, "Failed to write the metrics output", "path", r.metricsPath)
	}
}

func (r *runner) printYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal the report: %w", err)
	}

	if _, err := fmt.Fprintf(r.out, "---\n%s", data); err != nil {
		return fmt.Errorf("failed to write the report: %w", err)
	}

	return nil
}
