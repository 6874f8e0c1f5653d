package rules

import (
	"fmt"

	"github.com/planwerk/planwerk/model"
)

// DefaultRules returns the built-in rule catalog for the KG400 trades.
// Thresholds follow the published norm guidance cited per rule; the
// {value} and {limit} placeholders in descriptions are filled with the
// observed value and applied limit when a rule fires.
func DefaultRules() []RuleDefinition {
	defs := []RuleDefinition{
		// KG410 sanitary
		{
			ID: "kg410-hot-water-temp", Trade: model.TradeSanitary,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Hot water temperature below minimum",
			Description:    "The documented hot water temperature of {value} °C is below the required minimum of {limit} °C.",
			Recommendation: "Raise hot water generation to at least 55 °C and record the setting.",
			NormRef:        "TrinkwV, DVGW W 551", BaseConfidence: 0.85,
			When: []Condition{{Field: "hot_water_temp_c", Op: OpLess, Value: 55}},
		},
		{
			ID: "kg410-circulation-temp", Trade: model.TradeSanitary,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Circulation return temperature too low",
			Description:    "The circulation return temperature of {value} °C is below the guide value of {limit} °C.",
			Recommendation: "Check circulation balancing and pipework insulation.",
			NormRef:        "DVGW W 551", BaseConfidence: 0.8,
			When: []Condition{{Field: "circulation_temp_c", Op: OpLess, Value: 50}},
		},
		{
			ID: "kg410-stagnation", Trade: model.TradeSanitary,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Stagnation time exceeds hygiene limit",
			Description:    "A stagnation time of {value} h exceeds the permissible {limit} h.",
			Recommendation: "Provide flushing provisions or shorten dead legs.",
			NormRef:        "VDI 6023", BaseConfidence: 0.75,
			When: []Condition{{Field: "stagnation_hours", Op: OpGreater, Value: 72}},
		},
		{
			ID: "kg410-hot-water-velocity", Trade: model.TradeSanitary,
			Category: model.CategoryTechnical, Severity: model.SeverityLow,
			Title:          "Hot water flow velocity above guide value",
			Description:    "The hot water flow velocity of {value} m/s exceeds the guide value of {limit} m/s.",
			Recommendation: "Review pipe sizing for the affected runs.",
			NormRef:        "DIN 1988-300", BaseConfidence: 0.7,
			When: []Condition{{Field: "hot_water_velocity_ms", Op: OpGreater, Value: 1.5}},
		},
		{
			ID: "kg410-backflow-protection", Trade: model.TradeSanitary,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Backflow protection not evidenced",
			Description:    "No backflow protection is documented although the usage class requires it.",
			Recommendation: "Specify system separators for the affected connection points.",
			NormRef:        "DIN EN 1717", BaseConfidence: 0.8,
			BuildingTypes:  []model.BuildingType{model.BuildingHospital, model.BuildingIndustrial},
			When:           []Condition{{Field: "backflow_protection", Op: OpFlag}},
		},

		// KG420 heating
		{
			ID: "kg420-specific-load-max", Trade: model.TradeHeating,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Specific heating load above guide value",
			Description:    "The specific heating load of {value} W/m² exceeds the guide value of {limit} W/m² for the building type.",
			Recommendation: "Review envelope assumptions and ventilation zones in the heat load calculation.",
			NormRef:        "DIN EN 12831-1", BaseConfidence: 0.82,
			When: []Condition{{
				Field: "specific_load_w_per_m2", Op: OpGreater, Value: 100,
				Limits: map[model.BuildingType]float64{
					model.BuildingResidential: 100,
					model.BuildingOffice:      95,
					model.BuildingSchool:      110,
					model.BuildingHospital:    130,
					model.BuildingIndustrial:  160,
				},
			}},
		},
		{
			ID: "kg420-specific-load-min", Trade: model.TradeHeating,
			Category: model.CategoryTechnical, Severity: model.SeverityLow,
			Title:          "Specific heating load conspicuously low",
			Description:    "The specific heating load of {value} W/m² is below the expected minimum of {limit} W/m².",
			Recommendation: "Verify the input data of the heat load calculation.",
			NormRef:        "DIN EN 12831-1", BaseConfidence: 0.7,
			When: []Condition{{
				Field: "specific_load_w_per_m2", Op: OpLess, Value: 30,
				Limits: map[model.BuildingType]float64{
					model.BuildingResidential: 30,
					model.BuildingOffice:      40,
					model.BuildingSchool:      35,
					model.BuildingHospital:    45,
					model.BuildingIndustrial:  35,
				},
			}},
		},
		{
			ID: "kg420-supply-temp", Trade: model.TradeHeating,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Supply temperature above low-temperature limit",
			Description:    "The planned supply temperature of {value} °C exceeds the {limit} °C limit for low-temperature systems.",
			Recommendation: "Optimise the heating circuit temperature level, e.g. larger heating surfaces.",
			NormRef:        "GEG §70", BaseConfidence: 0.78,
			When: []Condition{{Field: "supply_temp_c", Op: OpGreater, Value: 70}},
		},
		{
			ID: "kg420-return-temp", Trade: model.TradeHeating,
			Category: model.CategoryTechnical, Severity: model.SeverityLow,
			Title:          "Return temperature above guide value",
			Description:    "The return temperature of {value} °C exceeds the recommended {limit} °C.",
			Recommendation: "Check hydraulic optimisation, e.g. increased flow rates.",
			NormRef:        "VDI 6030", BaseConfidence: 0.72,
			When: []Condition{{Field: "return_temp_c", Op: OpGreater, Value: 55}},
		},
		{
			ID: "kg420-pressure-min", Trade: model.TradeHeating,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "System pressure below minimum",
			Description:    "The documented system pressure of {value} bar is below the minimum of {limit} bar.",
			Recommendation: "Check and adjust the expansion vessel pre-charge.",
			NormRef:        "DIN EN 12828", BaseConfidence: 0.77,
			When: []Condition{{Field: "system_pressure_bar", Op: OpLess, Value: 1.5}},
		},
		{
			ID: "kg420-pressure-max", Trade: model.TradeHeating,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "System pressure above safety limit",
			Description:    "The specified system pressure of {value} bar exceeds the permissible maximum of {limit} bar.",
			Recommendation: "Verify safety valve and expansion vessel sizing.",
			NormRef:        "DIN EN 12828", BaseConfidence: 0.84,
			When: []Condition{{Field: "system_pressure_bar", Op: OpGreater, Value: 3.0}},
		},
		{
			ID: "kg420-hydraulic-balance", Trade: model.TradeHeating,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Hydraulic balancing not evidenced",
			Description:    "No proof of hydraulic balancing is documented for the heating system.",
			Recommendation: "Perform hydraulic balancing and record the protocol.",
			NormRef:        "EnSimiMaV", BaseConfidence: 0.88,
			When: []Condition{{Field: "hydraulic_balancing", Op: OpFlag}},
		},
		{
			ID: "kg420-generator-margin", Trade: model.TradeHeating,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Heat generator undersized",
			Description:    "The generator margin of {value} over the calculated heat load is below the required factor of {limit}.",
			Recommendation: "Increase generator capacity or verify the heat load calculation.",
			NormRef:        "DIN EN 12831-3", BaseConfidence: 0.86,
			When: []Condition{{
				Field: "generator_power_kw", DividedBy: "gross_heating_load_kw",
				Op: OpLess, Value: 1.15,
			}},
		},
		{
			ID: "kg420-heat-pump-cop", Trade: model.TradeHeating,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Heat pump COP below target",
			Description:    "The documented COP/SCOP of {value} is below the target of {limit} for efficient heat pumps.",
			Recommendation: "Review unit selection or lower the system temperatures.",
			NormRef:        "GEG §71", BaseConfidence: 0.8,
			When: []Condition{{Field: "heat_pump_cop", Op: OpLess, Value: 3.5}},
		},
		{
			ID: "kg420-boiler-efficiency", Trade: model.TradeHeating,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Boiler efficiency below minimum",
			Description:    "The stated boiler efficiency of {value} is below the minimum of {limit}.",
			Recommendation: "Use condensing technology or provide an efficiency certificate.",
			NormRef:        "GEG §62", BaseConfidence: 0.87,
			When: []Condition{{Field: "boiler_efficiency", Op: OpLess, Value: 0.92}},
		},

		// KG430 ventilation
		{
			ID: "kg430-air-change-min", Trade: model.TradeVentilation,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Air change rate below minimum",
			Description:    "The air change rate of {value} 1/h is below the minimum of {limit} 1/h for the building type.",
			Recommendation: "Update the air volume calculation and review unit selection.",
			NormRef:        "DIN EN 16798-1", BaseConfidence: 0.79,
			When: []Condition{{
				Field: "air_change_rate", Op: OpLess, Value: 0.5,
				Limits: map[model.BuildingType]float64{
					model.BuildingResidential: 0.5,
					model.BuildingOffice:      0.7,
					model.BuildingSchool:      3.0,
					model.BuildingHospital:    6.0,
					model.BuildingIndustrial:  2.0,
				},
			}},
		},
		{
			ID: "kg430-air-change-max", Trade: model.TradeVentilation,
			Category: model.CategoryTechnical, Severity: model.SeverityLow,
			Title:          "Air change rate conspicuously high",
			Description:    "The air change rate of {value} 1/h exceeds the guide value of {limit} 1/h.",
			Recommendation: "Check the plausibility of the load assumptions.",
			NormRef:        "DIN EN 16798-1", BaseConfidence: 0.68,
			When: []Condition{{
				Field: "air_change_rate", Op: OpGreater, Value: 3.0,
				Limits: map[model.BuildingType]float64{
					model.BuildingResidential: 3.0,
					model.BuildingOffice:      6.0,
					model.BuildingSchool:      6.0,
					model.BuildingHospital:    15.0,
					model.BuildingIndustrial:  20.0,
				},
			}},
		},
		{
			ID: "kg430-outdoor-air-per-person", Trade: model.TradeVentilation,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Outdoor air volume per person too low",
			Description:    "Only {value} m³/h outdoor air per person is available; the building type requires {limit} m³/h.",
			Recommendation: "Adjust the air volumes or reduce the occupancy.",
			NormRef:        "ASR A3.6, DIN EN 16798-1", BaseConfidence: 0.83,
			When: []Condition{{
				Field: "supply_air_m3h", DividedBy: "occupants",
				Op: OpLess, Value: 30,
				Limits: map[model.BuildingType]float64{
					model.BuildingResidential: 30,
					model.BuildingOffice:      36,
					model.BuildingSchool:      30,
					model.BuildingHospital:    40,
					model.BuildingIndustrial:  25,
				},
			}},
		},
		{
			ID: "kg430-balance-high", Trade: model.TradeVentilation,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Supply and exhaust air out of balance",
			Description:    "The supply/exhaust ratio of {value} is outside the permissible band around {limit}.",
			Recommendation: "Add a volume flow balancing step to the commissioning plan.",
			NormRef:        "VDI 6022", BaseConfidence: 0.75,
			When: []Condition{{
				Field: "supply_air_m3h", DividedBy: "exhaust_air_m3h",
				Op: OpGreater, Value: 1.1,
			}},
		},
		{
			ID: "kg430-balance-low", Trade: model.TradeVentilation,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Exhaust air exceeds supply air",
			Description:    "The supply/exhaust ratio of {value} is below the permissible band around {limit}.",
			Recommendation: "Add a volume flow balancing step to the commissioning plan.",
			NormRef:        "VDI 6022", BaseConfidence: 0.75,
			When: []Condition{{
				Field: "supply_air_m3h", DividedBy: "exhaust_air_m3h",
				Op: OpLess, Value: 0.9,
			}},
		},
		{
			ID: "kg430-co2", Trade: model.TradeVentilation,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "CO₂ concentration above limit",
			Description:    "The stated CO₂ concentration of {value} ppm exceeds the limit of {limit} ppm.",
			Recommendation: "Increase the outdoor air fraction or provide CO₂-based control.",
			NormRef:        "DIN EN 16798-1", BaseConfidence: 0.8,
			When: []Condition{{Field: "co2_ppm", Op: OpGreater, Value: 1000}},
		},
		{
			ID: "kg430-heat-recovery-eta", Trade: model.TradeVentilation,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Heat recovery efficiency too low",
			Description:    "The documented heat recovery efficiency of {value} is below the required {limit}.",
			Recommendation: "Review unit selection or update the performance data.",
			NormRef:        "DIN EN 13053", BaseConfidence: 0.78,
			When: []Condition{{Field: "heat_recovery_efficiency", Op: OpLess, Value: 0.75}},
		},
		{
			ID: "kg430-supply-filter", Trade: model.TradeVentilation,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Supply air filter class insufficient",
			Description:    "No supply air filter of class F7/ePM1 or better is documented.",
			Recommendation: "Specify the filter stages and label them in the schematic.",
			NormRef:        "DIN EN ISO 16890", BaseConfidence: 0.76,
			When: []Condition{{Field: "supply_filter_f7", Op: OpFlag}},
		},

		// KG440 electrical
		{
			ID: "kg440-voltage-drop", Trade: model.TradeElectrical,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Voltage drop exceeds limit",
			Description:    "The calculated voltage drop of {value} % exceeds the limit of {limit} %.",
			Recommendation: "Increase the conductor cross-section or shorten the cable run.",
			NormRef:        "DIN VDE 0100-520", BaseConfidence: 0.82,
			When: []Condition{{Field: "voltage_drop_percent", Op: OpGreater, Value: 3.0}},
		},
		{
			ID: "kg440-diversity-low", Trade: model.TradeElectrical,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Diversity factor below experience range",
			Description:    "The diversity factor of {value} is below the expected minimum of {limit}.",
			Recommendation: "Verify and document the load assumptions.",
			NormRef:        "DIN 18015", BaseConfidence: 0.7,
			When: []Condition{{Field: "diversity_factor", Op: OpLess, Value: 0.6}},
		},
		{
			ID: "kg440-diversity-high", Trade: model.TradeElectrical,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Diversity factor above experience range",
			Description:    "The diversity factor of {value} exceeds the expected maximum of {limit}.",
			Recommendation: "Verify and document the load assumptions.",
			NormRef:        "DIN 18015", BaseConfidence: 0.7,
			When: []Condition{{Field: "diversity_factor", Op: OpGreater, Value: 0.9}},
		},
		{
			ID: "kg440-reserve", Trade: model.TradeElectrical,
			Category: model.CategoryTechnical, Severity: model.SeverityLow,
			Title:          "Low capacity reserve",
			Description:    "Only {value} % reserve remains; at least {limit} % is recommended for extensions.",
			Recommendation: "Bundle circuits or increase the transformer capacity.",
			BaseConfidence: 0.65,
			When:           []Condition{{Field: "reserve_percent", Op: OpLess, Value: 10}},
		},
		{
			ID: "kg440-lighting-density", Trade: model.TradeElectrical,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Lighting power density above guide value",
			Description:    "The lighting power density of {value} W/m² exceeds the guide value of {limit} W/m².",
			Recommendation: "Optimise the luminaire selection or account for daylight use.",
			NormRef:        "DIN EN 12464-1", BaseConfidence: 0.73,
			When: []Condition{{
				Field: "lighting_power_w", DividedBy: "area_m2",
				Op: OpGreater, Value: 12,
				Limits: map[model.BuildingType]float64{
					model.BuildingOffice:     12,
					model.BuildingSchool:     15,
					model.BuildingIndustrial: 18,
				},
			}},
		},
		{
			ID: "kg440-emergency-lighting", Trade: model.TradeElectrical,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Emergency lighting not evidenced",
			Description:    "Safety lighting is required for the building type but is not documented.",
			Recommendation: "Plan the emergency lighting system and add escape route signage.",
			NormRef:        "DIN EN 1838", BaseConfidence: 0.84,
			BuildingTypes:  []model.BuildingType{model.BuildingOffice, model.BuildingSchool, model.BuildingHospital},
			When:           []Condition{{Field: "emergency_lighting", Op: OpFlag}},
		},

		// KG450 communication
		{
			ID: "kg450-rack-fill", Trade: model.TradeCommunication,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Rack occupancy too high",
			Description:    "A rack fill ratio of {value} is planned; at most {limit} is recommended to keep reserves.",
			Recommendation: "Distribute racks across rooms or extend capacity.",
			BaseConfidence: 0.7,
			When:           []Condition{{Field: "rack_fill_ratio", Op: OpGreater, Value: 0.8}},
		},
		{
			ID: "kg450-cable-shielding", Trade: model.TradeCommunication,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Cable shielding not evidenced",
			Description:    "Shielded cabling is required for the usage class but no evidence is documented.",
			Recommendation: "Update the cabling concept and specify the shielding measure.",
			NormRef:        "DIN EN 50174", BaseConfidence: 0.68,
			BuildingTypes:  []model.BuildingType{model.BuildingHospital, model.BuildingIndustrial},
			When:           []Condition{{Field: "cable_shielding", Op: OpFlag}},
		},
		{
			ID: "kg450-fire-alarm-standard", Trade: model.TradeCommunication,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Fire alarm system not norm-compliant",
			Description:    "No DIN 14675 compliance evidence is documented for the fire alarm system.",
			Recommendation: "Produce the DIN 14675 planning evidence and define a maintenance concept.",
			NormRef:        "DIN 14675", BaseConfidence: 0.82,
			When:           []Condition{{Field: "fire_alarm_din14675", Op: OpFlag}},
		},
		{
			ID: "kg450-alarm-redundancy", Trade: model.TradeCommunication,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Fire alarm system without redundant transmission",
			Description:    "A redundant transmission path is required for critical buildings but is not documented.",
			Recommendation: "Plan a ring structure or a second connection of the fire alarm panel.",
			NormRef:        "DIN 14675", BaseConfidence: 0.8,
			BuildingTypes:  []model.BuildingType{model.BuildingHospital},
			When:           []Condition{{Field: "fire_alarm_redundant", Op: OpFlag}},
		},

		// KG474 fire suppression
		{
			ID: "kg474-sprinkler-density", Trade: model.TradeFireSuppression,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Sprinkler discharge density below requirement",
			Description:    "The planned discharge density of {value} l/min·m² is below the required {limit} l/min·m².",
			Recommendation: "Adjust the nozzle count or the pump capacity.",
			NormRef:        "VdS CEA 4001", BaseConfidence: 0.83,
			When: []Condition{{Field: "sprinkler_density_lpm_m2", Op: OpLess, Value: 2.5}},
		},
		{
			ID: "kg474-water-duration", Trade: model.TradeFireSuppression,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Extinguishing water supply insufficient",
			Description:    "The water reserve lasts only {value} minutes; at least {limit} minutes are required.",
			Recommendation: "Size the extinguishing water tank or the feed accordingly.",
			NormRef:        "VdS CEA 4001", BaseConfidence: 0.81,
			When: []Condition{{Field: "water_supply_duration_min", Op: OpLess, Value: 30}},
		},
		{
			ID: "kg474-pump-redundancy", Trade: model.TradeFireSuppression,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Sprinkler system without redundant pump",
			Description:    "No redundant sprinkler pump is planned although the hazard class requires one.",
			Recommendation: "Provide a backup pump or a diesel/electric twin pump set.",
			NormRef:        "VdS CEA 4001", BaseConfidence: 0.82,
			BuildingTypes:  []model.BuildingType{model.BuildingHospital},
			When:           []Condition{{Field: "pump_redundancy", Op: OpFlag}},
		},
		{
			ID: "kg474-hydrant-flow", Trade: model.TradeFireSuppression,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Hydrant flow rate too low",
			Description:    "Only {value} l/min flow rate is provided; wall hydrants type F require at least {limit} l/min.",
			Recommendation: "Check the pipe network sizing and plan a booster if needed.",
			NormRef:        "DIN 14462", BaseConfidence: 0.75,
			When: []Condition{{Field: "hydrant_flow_lpm", Op: OpLess, Value: 200}},
		},
		{
			ID: "kg474-hydrant-pressure", Trade: model.TradeFireSuppression,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Hydrant operating pressure too low",
			Description:    "The operating pressure of {value} MPa is below the required {limit} MPa.",
			Recommendation: "Optimise pressure maintenance or increase the pump capacity.",
			NormRef:        "DIN 14462", BaseConfidence: 0.74,
			When: []Condition{{Field: "hydrant_pressure_mpa", Op: OpLess, Value: 0.4}},
		},

		// KG480 building automation
		{
			ID: "kg480-trend-storage", Trade: model.TradeAutomation,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Trend data storage too short",
			Description:    "Trend data is stored for only {value} days; at least {limit} days are required for energy analysis.",
			Recommendation: "Extend the storage capacity or provide an export interface.",
			NormRef:        "DIN EN ISO 52120-1", BaseConfidence: 0.7,
			When: []Condition{{Field: "trend_storage_days", Op: OpLess, Value: 30}},
		},
		{
			ID: "kg480-alarm-response", Trade: model.TradeAutomation,
			Category: model.CategoryTechnical, Severity: model.SeverityHigh,
			Title:          "Alarm forwarding too slow",
			Description:    "The planned alarm response time of {value} s exceeds the guide value of {limit} s.",
			Recommendation: "Speed up alarm management and define an escalation path.",
			BaseConfidence: 0.82,
			When:           []Condition{{Field: "alarm_response_s", Op: OpGreater, Value: 300}},
		},
		{
			ID: "kg480-point-density", Trade: model.TradeAutomation,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Data point density too low",
			Description:    "The data point density of {value} points/m² is below the required {limit} points/m².",
			Recommendation: "Add sensors and actuators and rework the BACS function list.",
			NormRef:        "DIN EN ISO 52120-1", BaseConfidence: 0.72,
			When: []Condition{{
				Field: "datapoint_count", DividedBy: "area_m2",
				Op: OpLess, Value: 0.015,
			}},
		},
		{
			ID: "kg480-energy-monitoring", Trade: model.TradeAutomation,
			Category: model.CategoryTechnical, Severity: model.SeverityMedium,
			Title:          "Energy monitoring not evidenced",
			Description:    "No energy monitoring function is documented for the building automation system.",
			Recommendation: "Extend the BACS scope with metering and monitoring functions.",
			NormRef:        "DIN EN ISO 52120-1", BaseConfidence: 0.74,
			When:           []Condition{{Field: "energy_monitoring", Op: OpFlag}},
		},
	}

	return append(defs, formalRules()...)
}

// formalRules generates the VDI 6026 legend completeness rule for every
// trade. Extraction marks legend_complete per document after comparing the
// plan legend against the trade's mandatory symbol set.
func formalRules() []RuleDefinition {
	var defs []RuleDefinition
	for _, trade := range model.KnownTrades() {
		defs = append(defs, RuleDefinition{
			ID:             fmt.Sprintf("%s-formal-legend", shortCode(trade)),
			Trade:          trade,
			Category:       model.CategoryFormal,
			Severity:       model.SeverityMedium,
			Title:          "Plan legend incomplete",
			Description:    "Mandatory legend symbols for the trade are missing from the plan legend.",
			Recommendation: "Add the missing symbols to the legend.",
			NormRef:        "VDI 6026",
			BaseConfidence: 0.7,
			When:           []Condition{{Field: "legend_complete", Op: OpFlag}},
		})
	}
	return defs
}

func shortCode(trade model.Trade) string {
	if len(trade) >= 5 {
		return string(trade[:5])
	}
	return string(trade)
}
