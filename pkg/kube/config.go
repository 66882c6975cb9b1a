/*
Copyright © 2025 The kubernix authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package kube

// cSpell: words clientcmd readyz
// cSpell: disable
import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
)

// cSpell: enable

type Config api.Config

// LoadFromFile loads the configuration from the file specified by filename.
func LoadFromFile(filename string) (*Config, error) {
	_config, err := clientcmd.LoadFromFile(filename)
	if err != nil {
		return nil, err
	}
	config := (*Config)(_config)
	return config, nil
}

// Validate checks that the configuration is complete enough to create a
// client from: a current context pointing at an existing cluster and user.
func (config *Config) Validate() error {
	if config.CurrentContext == "" {
		return fmt.Errorf("kubeconfig has no current context")
	}
	context, ok := config.Contexts[config.CurrentContext]
	if !ok {
		return fmt.Errorf("kubeconfig context %q does not exist", config.CurrentContext)
	}
	if _, ok = config.Clusters[context.Cluster]; !ok {
		return fmt.Errorf("kubeconfig cluster %q does not exist", context.Cluster)
	}
	if _, ok = config.AuthInfos[context.AuthInfo]; !ok {
		return fmt.Errorf("kubeconfig user %q does not exist", context.AuthInfo)
	}
	return nil
}

// IsServerAddress checks that config points to the server at the given
// address.
func (config *Config) IsServerAddress(address string) bool {
	expectedURL := fmt.Sprintf("https://%v:6443", address)
	for _, cluster := range config.Clusters {
		if cluster.Server != expectedURL {
			return false
		}
	}
	return true
}

// Client returns a clientset for config.
func (config *Config) Client() (client *kubernetes.Clientset, err error) {
	clientConfig := clientcmd.NewDefaultClientConfig(api.Config(*config), nil)
	var rest *rest.Config
	rest, err = clientConfig.ClientConfig()
	if err != nil {
		return client, err
	}
	client, err = kubernetes.NewForConfig(rest)
	return client, err
}

// CheckClusterRunning checks that the cluster is running by requesting the
// API server /readyz endpoint. It checks retries times and waits for waitTime
// milliseconds between each check. It needs at least okResponses good responses
// from the server.
func (config *Config) CheckClusterRunning(retries, okResponses, waitTime int) error {
	client, err := config.Client()
	if err != nil {
		return err
	}

	okTries := 0
	query := client.Discovery().RESTClient().Get().AbsPath("/readyz")
	for retries > 0 {
		var content []byte
		content, err = query.DoRaw(context.Background())
		if err == nil {
			contentStr := string(content)
			if contentStr != "ok" {
				err = fmt.Errorf("cluster health API returned: %s", contentStr)
				log.WithError(err).Debug("Bad response")
			} else {
				okTries = okTries + 1
				log.WithField("okTries", okTries).Trace("Ok response from server")
				if okTries == okResponses {
					break
				}
			}
		} else {
			log.WithError(err).Debug("while querying cluster readiness")
		}

		retries = retries - 1
		if retries == 0 {
			log.Trace("No more retries left.")
			return err
		} else {
			log.WithFields(log.Fields{
				"err":       err,
				"wait_time": waitTime,
			}).Debug("Waiting...")
			time.Sleep(time.Duration(waitTime) * time.Millisecond)
		}
	}

	return err
}

// WriteToFile writes the config configuration to the file pointed by filename.
// It returns the appropriate error in case of failure.
func (config *Config) WriteToFile(filename string) error {
	return clientcmd.WriteToFile(*(*api.Config)(config), filename)
}
