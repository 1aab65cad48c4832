package state

// ControllerSupportedCommands reads server_state.controller.supported_commands
// if present, for the Protocol Engine's command-taxonomy gating. Returns
// (nil, false) if the list is absent, meaning "no restriction" per spec
// §4.C ("If the cached list is present and does not include the command,
// the engine fails synchronously").
func (c CachedState) ControllerSupportedCommands() ([]string, bool) {
	controller, ok := c["controller"].(map[string]any)
	if !ok {
		return nil, false
	}
	raw, ok := controller["supported_commands"].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
