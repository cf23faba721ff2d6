package prom

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/botlabs-gg/bulkmod/common"
	"github.com/botlabs-gg/bulkmod/common/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConfPromListenAddr      = config.RegisterOption("bulkmod.prom_listen_addr", "Prometheus listen address", "")
	ConfPromListenPortRange = config.RegisterOption("bulkmod.prom_listen_port_range", "Prometheus listen port range", "6001-6100")

	logger = common.GetFixedPrefixLogger("prom")
)

// Run starts the metrics server on the first free port in the configured range
func Run() error {
	ports, err := ParseRange(ConfPromListenPortRange.GetString())
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		logger.Warn("No prom ports defined, not launching prom server")
		return nil
	}

	logger.Infof("Using port range %v", ports)
	go startHTTPServer(ports)
	return nil
}

func startHTTPServer(ports []int) {
	for {
		for _, p := range ports {
			listenAddr := fmt.Sprintf("%s:%d", ConfPromListenAddr.GetString(), p)
			logger.Infof("Attempting to start prom server on %s", listenAddr)
			err := http.ListenAndServe(listenAddr, promhttp.Handler())
			if err != nil {
				logger.WithError(err).Warn("failed starting prom server, trying another port")
			}

			time.Sleep(time.Second)
		}
	}
}

// ParseRange parses "6001-6100" or a single port
func ParseRange(in string) ([]int, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return nil, nil
	}

	if !strings.Contains(in, "-") {
		n, err := strconv.Atoi(in)
		if err != nil {
			return nil, errors.WithStackIf(err)
		}

		return []int{n}, nil
	}

	split := strings.SplitN(in, "-", 2)
	parsedStart, err := strconv.Atoi(split[0])
	if err != nil {
		return nil, errors.WithStackIf(err)
	}

	parsedEnd, err := strconv.Atoi(split[1])
	if err != nil {
		return nil, errors.WithStackIf(err)
	}

	if parsedEnd < parsedStart {
		return nil, errors.Errorf("invalid port range %q", in)
	}

	result := make([]int, 0, parsedEnd-parsedStart+1)
	for i := parsedStart; i <= parsedEnd; i++ {
		result = append(result, i)
	}

	return result, nil
}
