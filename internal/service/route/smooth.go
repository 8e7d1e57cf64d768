// Argus RidePlan - Ride time and weather planning for GPS routes.
// Copyright (C) 2026  Paulo Sérgio
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package route

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SmoothElevation applies a centered Savitzky-Golay filter to the series.
// Input values are rounded to the meter first. The window is forced odd and
// shrunk to the longest odd window that fits the series; when no window
// larger than the polynomial order fits, the rounded values are returned.
// Edges are handled by evaluating the polynomial fitted to the first and
// last full windows.
func SmoothElevation(values []float64, window, order int) []float64 {
	n := len(values)
	rounded := make([]float64, n)
	for i, v := range values {
		rounded[i] = math.Round(v)
	}

	w := validWindow(window, n)
	if order < 0 || w <= order {
		return rounded
	}

	hat := projection(w, order)
	half := w / 2
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		var row, offset int
		switch {
		case i < half:
			row, offset = i, 0
		case i >= n-half:
			row, offset = i-(n-w), n-w
		default:
			row, offset = half, i-half
		}

		var sum float64
		for k := 0; k < w; k++ {
			sum += hat.At(row, k) * rounded[offset+k]
		}
		out[i] = sum
	}
	return out
}

// validWindow returns the largest odd window <= min(window, n), or 0.
func validWindow(window, n int) int {
	w := window
	if w > n {
		w = n
	}
	if w%2 == 0 {
		w--
	}
	if w < 1 {
		return 0
	}
	return w
}

// projection builds the least-squares hat matrix for a polynomial of the
// given order over the offsets -w/2..w/2. Row r of the result maps the w
// window samples to the fitted value at offset r.
func projection(w, order int) *mat.Dense {
	half := w / 2
	cols := order + 1

	vander := mat.NewDense(w, cols, nil)
	for i := 0; i < w; i++ {
		x := float64(i - half)
		v := 1.0
		for j := 0; j < cols; j++ {
			vander.Set(i, j, v)
			v *= x
		}
	}

	var qr mat.QR
	qr.Factorize(vander)

	var q mat.Dense
	qr.QTo(&q)
	basis := q.Slice(0, w, 0, cols)

	var hat mat.Dense
	hat.Mul(basis, basis.T())
	return &hat
}
