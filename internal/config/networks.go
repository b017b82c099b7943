package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Network is one entry of the network list.
type Network struct {
	// Key is the upper-case identifier taken from NET_<KEY>_NAME.
	Key string
	// Name is the display name.
	Name string
	// APIEndpoint is the asset chain's RPC endpoint.
	APIEndpoint string
}

var networkKeyRegexp = regexp.MustCompile(`NET_([A-Z]+)_NAME$`)

// NetworksFromEnv lists the networks declared in environ ("KEY=value"
// entries, as returned by os.Environ). A network exists when a variable
// ending in NET_<KEY>_NAME is set; any prefix is allowed, so
// APP_NET_QUARTZ_NAME declares QUARTZ. Networks are sorted by key.
func NetworksFromEnv(environ []string) []Network {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if ok {
			values[key] = value
		}
	}

	seen := make(map[string]bool)
	var networks []Network
	for key := range values {
		match := networkKeyRegexp.FindStringSubmatch(key)
		if match == nil || seen[match[1]] {
			continue
		}
		seen[match[1]] = true
		networks = append(networks, Network{
			Key:         match[1],
			Name:        findNetworkParam(values, match[1], "NAME"),
			APIEndpoint: findNetworkParam(values, match[1], "API"),
		})
	}

	sort.Slice(networks, func(i, j int) bool { return networks[i].Key < networks[j].Key })
	return networks
}

func findNetworkParam(values map[string]string, network, param string) string {
	suffix := "NET_" + network + "_" + param
	var keys []string
	for key := range values {
		if strings.HasSuffix(key, suffix) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return values[keys[0]]
}

// SelectNetwork returns the network named key, or the first network when key
// is empty.
func SelectNetwork(networks []Network, key string) (Network, error) {
	if len(networks) == 0 {
		return Network{}, fmt.Errorf("no networks configured: set NET_<NAME>_NAME and NET_<NAME>_API")
	}
	if key == "" {
		return networks[0], nil
	}
	for _, n := range networks {
		if strings.EqualFold(n.Key, key) {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("network %q is not configured", key)
}

// ApplyNetwork fills empty endpoints from the selected network.
func (c *Config) ApplyNetwork(n Network) {
	c.Network = n.Key
	if c.Asset.RPCURL == "" {
		c.Asset.RPCURL = n.APIEndpoint
	}
}
