// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package gasmodel

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/shopspring/decimal"
)

// Price is the integer gas charged for one unit of a category.
type Price struct {
	Category string  `json:"category"`
	Gas      fvm.Gas `json:"gas"`
}

// PriceTable converts the coefficients of the model into gas prices given
// the amount of gas charged per unit of measured cost, e.g. gas per
// nanosecond. Prices are rounded half away from zero.
func (m *CostModel) PriceTable(gasPerUnit decimal.Decimal) []Price {
	res := make([]Price, 0, len(m.Coefficients))
	for _, coefficient := range m.Coefficients {
		gas := decimal.NewFromFloat(coefficient.Value).Mul(gasPerUnit).Round(0)
		res = append(res, Price{
			Category: coefficient.Category,
			Gas:      fvm.Gas(gas.IntPart()),
		})
	}
	return res
}

// Calibration is the persisted outcome of a calibration run.
type Calibration struct {
	Metric     string          `json:"metric"`
	GasPerUnit decimal.Decimal `json:"gas_per_unit"`
	Model      *CostModel      `json:"model"`
	Prices     []Price         `json:"prices"`
}

// NewCalibration bundles a model with its price table.
func NewCalibration(metric string, model *CostModel, gasPerUnit decimal.Decimal) Calibration {
	return Calibration{
		Metric:     metric,
		GasPerUnit: gasPerUnit,
		Model:      model,
		Prices:     model.PriceTable(gasPerUnit),
	}
}

func WriteJSON(out io.Writer, calibration Calibration) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(calibration)
}

func ReadJSON(in io.Reader) (Calibration, error) {
	var res Calibration
	if err := json.NewDecoder(in).Decode(&res); err != nil {
		return Calibration{}, fmt.Errorf("invalid calibration: %w", err)
	}
	if res.Model == nil {
		return Calibration{}, fmt.Errorf("invalid calibration: missing model")
	}
	return res, nil
}
