package config

import hclog "github.com/hashicorp/go-hclog"

func (m *Manager) ReloadSettings(logger hclog.Logger) {
	m.reloadSettings(logger)
}
