package k8s

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Target names the Services that front the inventory API and Prometheus.
type Target struct {
	Namespace         string
	InventoryService  string
	PrometheusService string
}

type Endpoints struct {
	InventoryURL  string
	PrometheusURL string
}

// Discoverer resolves backend URLs from Kubernetes Services.
type Discoverer struct {
	core      kubernetes.Interface
	inCluster bool
}

func New(kubeconfigPath, contextName string) (*Discoverer, error) {
	cfg, inCluster, err := loadRESTConfig(kubeconfigPath, contextName)
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	cfg.QPS = 30
	cfg.Burst = 60
	core, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Discoverer{core: core, inCluster: inCluster}, nil
}

// NewFromClient wraps an existing clientset.
func NewFromClient(core kubernetes.Interface, inCluster bool) *Discoverer {
	return &Discoverer{core: core, inCluster: inCluster}
}

func loadRESTConfig(kubeconfigPath, contextName string) (*rest.Config, bool, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, true, nil
	}
	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
	overrides := &clientcmd.ConfigOverrides{}
	if contextName != "" {
		overrides.CurrentContext = contextName
	}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	return cfg, false, err
}

// Discover resolves every service named in t. Empty names are skipped.
func (d *Discoverer) Discover(ctx context.Context, t Target) (Endpoints, error) {
	var out Endpoints
	if t.InventoryService != "" {
		u, err := d.ServiceURL(ctx, t.Namespace, t.InventoryService)
		if err != nil {
			return out, err
		}
		out.InventoryURL = u
	}
	if t.PrometheusService != "" {
		u, err := d.ServiceURL(ctx, t.Namespace, t.PrometheusService)
		if err != nil {
			return out, err
		}
		out.PrometheusURL = u
	}
	return out, nil
}

// ServiceURL turns a Service into a base URL. Load balancer ingress wins,
// then the cluster DNS name when running in a pod, then the cluster IP.
func (d *Discoverer) ServiceURL(ctx context.Context, namespace, name string) (string, error) {
	svc, err := d.core.CoreV1().Services(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get service %s/%s: %w", namespace, name, err)
	}
	port, ok := pickPort(svc.Spec.Ports)
	if !ok {
		return "", fmt.Errorf("service %s/%s exposes no ports", namespace, name)
	}

	host := ""
	for _, ing := range svc.Status.LoadBalancer.Ingress {
		if ing.Hostname != "" {
			host = ing.Hostname
			break
		}
		if ing.IP != "" {
			host = ing.IP
			break
		}
	}
	switch {
	case host != "":
	case d.inCluster:
		host = fmt.Sprintf("%s.%s.svc", svc.Name, svc.Namespace)
	case svc.Spec.ClusterIP != "" && svc.Spec.ClusterIP != corev1.ClusterIPNone:
		host = svc.Spec.ClusterIP
	default:
		return "", fmt.Errorf("service %s/%s has no reachable address", namespace, name)
	}

	u := schemeOf(port) + "://" + net.JoinHostPort(host, strconv.Itoa(int(port.Port)))
	log.WithFields(log.Fields{"service": namespace + "/" + name, "url": u}).Debug("discovered endpoint")
	return u, nil
}

// pickPort prefers a port named like http/https/web, else the first one.
func pickPort(ports []corev1.ServicePort) (corev1.ServicePort, bool) {
	if len(ports) == 0 {
		return corev1.ServicePort{}, false
	}
	for _, p := range ports {
		switch strings.ToLower(p.Name) {
		case "https", "http", "web", "api":
			return p, true
		}
	}
	return ports[0], true
}

func schemeOf(p corev1.ServicePort) string {
	if strings.Contains(strings.ToLower(p.Name), "https") || p.Port == 443 || p.Port == 8443 {
		return "https"
	}
	return "http"
}
