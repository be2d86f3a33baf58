// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"github.com/Solifugus/storysplicer/pkg/kernel"
	"github.com/Solifugus/storysplicer/pkg/world"
)

// Physiology rates, in percent per elapsed wall second.
const (
	nutritionDrainDivisor = 900.0 // ~1% per 15 minutes
	hydrationDrainDivisor = 600.0 // ~1% per 10 minutes
	awakeTirednessDivisor = 600.0 // ~1% per 10 minutes awake
	sleepRecoveryPerMin   = 5.0   // tiredness down, alertness up per minute asleep
	damageDecayPerHour    = 0.5   // severity points per hour
)

// physiologyTick computes the state patch for one character over dt
// elapsed wall seconds. Clamping and the forced-sleep rule are applied
// again by the kernel on commit.
func physiologyTick(c *world.Character, dt float64) kernel.StatePatch {
	nutrition := world.ClampPercent(c.Nutrition - dt/nutritionDrainDivisor)
	hydration := world.ClampPercent(c.Hydration - dt/hydrationDrainDivisor)

	tiredness := c.Tiredness
	alertness := c.Alertness
	if c.Alertness < world.AwakeThreshold {
		// Asleep: recover.
		tiredness = world.ClampPercent(tiredness - sleepRecoveryPerMin*dt/60)
		alertness = world.ClampPercent(alertness + sleepRecoveryPerMin*dt/60)
	} else {
		tiredness = world.ClampPercent(tiredness + dt/awakeTirednessDivisor)
		if tiredness >= 100 {
			alertness = 0
		}
	}

	var damage []world.DamageEntry
	for _, d := range c.Damage {
		d.Severity -= damageDecayPerHour * dt / 3600
		if d.Severity > 0 {
			damage = append(damage, d)
		}
	}

	return kernel.StatePatch{
		Nutrition: &nutrition,
		Hydration: &hydration,
		Tiredness: &tiredness,
		Alertness: &alertness,
		Damage:    damage,
		HasDamage: true,
	}
}
