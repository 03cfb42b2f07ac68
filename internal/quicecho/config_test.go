// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import "testing"

func TestDefaultConfigQUICConfigTranslation(t *testing.T) {
	cfg := DefaultConfig()
	qc := cfg.QUICConfig()

	if qc.MaxIdleTimeout != cfg.MaxIdleTimeout {
		t.Errorf("MaxIdleTimeout mismatch: %v != %v", qc.MaxIdleTimeout, cfg.MaxIdleTimeout)
	}
	if qc.MaxIncomingStreams != cfg.InitialMaxStreamsBidi {
		t.Errorf("MaxIncomingStreams mismatch: %v != %v", qc.MaxIncomingStreams, cfg.InitialMaxStreamsBidi)
	}
	if qc.MaxIncomingUniStreams != cfg.InitialMaxStreamsUni {
		t.Errorf("MaxIncomingUniStreams mismatch: %v != %v", qc.MaxIncomingUniStreams, cfg.InitialMaxStreamsUni)
	}
	if !qc.EnableDatagrams {
		t.Error("expected datagrams enabled with nonzero MaxDatagramFrameSize")
	}
}

func TestConfigDisablesDatagramsWhenFrameSizeZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDatagramFrameSize = 0
	qc := cfg.QUICConfig()
	if qc.EnableDatagrams {
		t.Error("expected datagrams disabled when MaxDatagramFrameSize is 0")
	}
}

func TestAdditionalH3SettingsAdvertisesWTMaxSessions(t *testing.T) {
	cfg := DefaultConfig()
	settings := cfg.AdditionalH3Settings()
	got, ok := settings[settingsWTMaxSessionsID]
	if !ok {
		t.Fatal("expected SETTINGS_WT_MAX_SESSIONS to be present")
	}
	if got != cfg.WebTransportMaxSessions {
		t.Errorf("got %d, want %d", got, cfg.WebTransportMaxSessions)
	}
}

func TestAdditionalH3SettingsOmittedWithoutExtendedConnect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableExtendedConnect = false
	settings := cfg.AdditionalH3Settings()
	if _, ok := settings[settingsWTMaxSessionsID]; ok {
		t.Error("SETTINGS_WT_MAX_SESSIONS must not be advertised without Extended CONNECT")
	}
}
