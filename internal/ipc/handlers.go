package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/nbfc-linux/nbfcd/internal/fan"
	"github.com/nbfc-linux/nbfcd/internal/service"
)

// handleSetFanSpeed validates and applies a set-fan-speed command by
// walking the request key by key: every key besides "Command" must be
// "Fan" or "Speed", Fan must be a non-negative integer within range,
// and Speed must be either the string "auto" or a number in [0,100].
func handleSetFanSpeed(svc *service.Service, req Request) (any, error) {
	fanIdx := -1
	haveSpeed := false
	speed := 0.0
	auto := false

	for key, raw := range req {
		switch key {
		case "Command":
			continue
		case "Fan":
			var f int
			if err := json.Unmarshal(raw, &f); err != nil {
				return nil, fmt.Errorf("Fan: Not an integer")
			}
			fanIdx = f
			if fanIdx < 0 {
				return nil, fmt.Errorf("Fan: Cannot be negative")
			}
			if fanIdx >= len(svc.Fans) {
				return nil, fmt.Errorf("Fan: No such fan available")
			}
		case "Speed":
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				if s != "auto" {
					return nil, fmt.Errorf("Speed: Invalid type. Either float or 'auto'")
				}
				auto = true
				haveSpeed = true
				continue
			}
			var f float64
			if err := json.Unmarshal(raw, &f); err != nil {
				return nil, fmt.Errorf("Speed: Invalid type. Either float or 'auto'")
			}
			if f < 0.0 || f > 100.0 {
				return nil, fmt.Errorf("Speed: Invalid value")
			}
			speed = f
			haveSpeed = true
		default:
			return nil, fmt.Errorf("Unknown arguments")
		}
	}

	if !haveSpeed {
		return nil, fmt.Errorf("Missing argument: Speed")
	}

	for i, f := range svc.Fans {
		if fanIdx == -1 || fanIdx == i {
			if auto {
				f.SetAutoSpeed()
			} else {
				f.SetFixedSpeed(speed)
			}
			if !svc.ReadOnly {
				if err := f.ECFlush(svc.EC, svc.ModelConfig.ReadWriteWords, svc.ModelConfig.RegisterWriteConfigurations); err != nil {
					return nil, fmt.Errorf("flush fan %d: %w", i, err)
				}
			}
		}
	}

	if err := svc.WriteTargetFanSpeeds(); err != nil {
		return nil, err
	}

	return SetFanSpeedResponse{Status: "OK"}, nil
}

// handleStatus validates and answers a status command, rejecting any
// request body carrying more than one key (there is nothing a status
// command could usefully take besides "Command").
func handleStatus(svc *service.Service, req Request) (any, error) {
	if len(req) > 1 {
		return nil, fmt.Errorf("Unknown arguments")
	}

	resp := StatusResponse{
		PID:              svc.PID(),
		SelectedConfigId: svc.ServiceConfig.SelectedConfigId,
		ReadOnly:         svc.ReadOnly,
	}
	for i, f := range svc.Fans {
		resp.Fans = append(resp.Fans, FanStatus{
			Name:           f.Config.FanDisplayName,
			Temperature:    svc.TempControls[i].Temperature(),
			AutoMode:       f.Mode == fan.Auto,
			Critical:       f.IsCritical,
			CurrentSpeed:   f.CurrentSpeed,
			TargetSpeed:    f.TargetSpeed,
			RequestedSpeed: f.RequestedSpeed,
			SpeedSteps:     f.SpeedSteps(),
		})
	}
	return resp, nil
}
