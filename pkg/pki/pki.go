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

// Package pki generates the cluster certificate authority and the
// per-component certificates with cfssl and cfssljson.
package pki

// cSpell: words cfssl cfssljson initca gencert
import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kubernix/kubernix/pkg/assets"
	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/network"
	"github.com/kubernix/kubernix/pkg/utils"
)

const configName = "ca-config.json"

// Identity is one certificate pair below the pki directory. User is the
// common name the kubeconfig credentials are created for.
type Identity struct {
	Name string
	User string
	Cert string
	Key  string
}

type Pki struct {
	Dir               string
	CA                *Identity
	Admin             *Identity
	APIServer         *Identity
	ControllerManager *Identity
	Scheduler         *Identity
	Proxy             *Identity
	ServiceAccount    *Identity
	Kubelets          []*Identity
}

type signing struct {
	id   *Identity
	o    string
	sans []string
}

func newIdentity(dir, name, user string) *Identity {
	return &Identity{
		Name: name,
		User: user,
		Cert: filepath.Join(dir, name+".pem"),
		Key:  filepath.Join(dir, name+"-key.pem"),
	}
}

func identities(dir string, nodeNames []string) *Pki {
	p := &Pki{
		Dir:               dir,
		CA:                newIdentity(dir, "ca", "kubernetes"),
		Admin:             newIdentity(dir, "admin", "admin"),
		APIServer:         newIdentity(dir, "kubernetes", "kubernetes"),
		ControllerManager: newIdentity(dir, "kube-controller-manager", "system:kube-controller-manager"),
		Scheduler:         newIdentity(dir, "kube-scheduler", "system:kube-scheduler"),
		Proxy:             newIdentity(dir, "kube-proxy", "system:kube-proxy"),
		ServiceAccount:    newIdentity(dir, "service-account", "service-accounts"),
	}
	for _, node := range nodeNames {
		p.Kubelets = append(p.Kubelets, newIdentity(dir, node, "system:node:"+node))
	}
	return p
}

// Identities lists every identity of the cluster, the kubelets last.
func (p *Pki) Identities() []*Identity {
	all := []*Identity{
		p.CA, p.Admin, p.APIServer,
		p.ControllerManager, p.Scheduler, p.Proxy, p.ServiceAccount,
	}
	return append(all, p.Kubelets...)
}

// Existing returns the identity paths below root without generating
// anything, for inspection of a cluster that may or may not be there.
func Existing(root string, nodeNames []string) *Pki {
	return identities(filepath.Join(root, constants.PkiDir), nodeNames)
}

// Setup generates all cluster certificates below <root>/pki. An existing
// pki directory is reused as is, which keeps restarts on the same root
// cheap and the issued kubeconfigs valid.
func Setup(root string, layout *network.Layout, hostname string, nodeNames []string) (*Pki, error) {
	dir := filepath.Join(root, constants.PkiDir)
	p := identities(dir, nodeNames)

	exists, err := utils.FS.DirExists(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "While checking %s", dir)
	}
	if exists {
		log.WithField("dir", dir).Info("Reusing existing certificates")
		return p, nil
	}

	log.WithField("dir", dir).Info("Generating certificates")
	if err := utils.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "While creating %s", dir)
	}
	if err := assets.Write(configName, filepath.Join(dir, configName), nil, 0o644); err != nil {
		return nil, err
	}

	if err := p.generate(p.CA, "kubernetes", nil, true); err != nil {
		return nil, err
	}

	apiSans := []string{
		layout.API.String(),
		"127.0.0.1",
		hostname,
		"kubernetes",
		"kubernetes.default",
		"kubernetes.default.svc",
		"kubernetes.default.svc.cluster",
		"kubernetes.default.svc.cluster.local",
	}
	apiSans = append(apiSans, nodeNames...)

	signings := []signing{
		{id: p.Admin, o: "system:masters"},
		{id: p.APIServer, o: "kubernetes", sans: apiSans},
		{id: p.ControllerManager, o: "system:kube-controller-manager"},
		{id: p.Scheduler, o: "system:kube-scheduler"},
		{id: p.Proxy, o: "system:node-proxier"},
		{id: p.ServiceAccount, o: "kubernetes"},
	}
	for _, kubelet := range p.Kubelets {
		signings = append(signings, signing{id: kubelet, o: "system:nodes"})
	}

	for _, s := range signings {
		if err := p.generate(s.id, s.o, s.sans, false); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pki) generate(id *Identity, organization string, sans []string, initca bool) error {
	csrFile := filepath.Join(p.Dir, id.Name+"-csr.json")
	payload, err := assets.Render("csr.json.tmpl", map[string]string{"CN": id.User, "O": organization})
	if err != nil {
		return err
	}
	if err = utils.FS.WriteFile(csrFile, payload, 0o644); err != nil {
		return errors.Wrapf(err, "While writing %s", csrFile)
	}

	args := []string{"gencert"}
	if initca {
		args = append(args, "-initca", csrFile)
	} else {
		args = append(args,
			"-ca="+p.CA.Cert,
			"-ca-key="+p.CA.Key,
			"-config="+filepath.Join(p.Dir, configName),
			"-profile=kubernetes",
		)
		if len(sans) > 0 {
			args = append(args, "-hostname="+strings.Join(sans, ","))
		}
		args = append(args, csrFile)
	}

	log.WithFields(log.Fields{
		"name": id.Name,
		"cn":   id.User,
	}).Debug("Generating certificate")
	out, err := utils.Exec.Run(false, constants.CfsslCmd, args...)
	if err != nil {
		return errors.Wrapf(err, "While generating certificate %s", id.Name)
	}
	prefix := filepath.Join(p.Dir, id.Name)
	if _, err = utils.Exec.Pipe(bytes.NewReader(out), true, constants.CfssljsonCmd, "-bare", prefix); err != nil {
		return errors.Wrapf(err, "While writing certificate %s", id.Name)
	}
	return nil
}
