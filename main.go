package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/xhhuango/json"
	"go.uber.org/zap"

	"github.com/earnvol/dboundary/logging"
	"github.com/earnvol/dboundary/marketdata"
	"github.com/earnvol/dboundary/models"
	"github.com/earnvol/dboundary/pricing"
)

const (
	defaultSnapshotDir = "snapshots"
	defaultResultsFile = "spreads.json"
	defaultFrontDTE    = 30
	defaultBackDTE     = 60
	defaultVol         = 0.20
	maxReports         = 10
)

// Moneyness ladder for candidate strikes around spot.
var strikeLadder = []float64{0.95, 0.975, 1.0, 1.025, 1.05}

// spreadReport is one scored calendar-spread candidate. ThetaPerDebit is the
// ranking key: annualized decay earned per dollar of premium paid. NetTheta
// is positive for a long calendar because the short front leg decays faster.
type spreadReport struct {
	Symbol        string                `json:"symbol"`
	Strike        float64               `json:"strike"`
	FrontMaturity float64               `json:"front_maturity"`
	BackMaturity  float64               `json:"back_maturity"`
	RealizedVol   float64               `json:"realized_vol"`
	HestonIV      float64               `json:"heston_iv"`
	ThetaPerDebit float64               `json:"theta_per_debit"`
	Pricing       pricing.SpreadPricing `json:"pricing"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using process environment")
	}

	logger, err := logging.New(logging.Config{
		Level: os.Getenv("LOG_LEVEL"),
		File:  os.Getenv("LOG_FILE"),
	})
	if err != nil {
		fmt.Printf("Error building logger: %s\n", err.Error())
		os.Exit(1)
	}
	defer logger.Sync()

	snapshotDir := envString("SNAPSHOT_DIR", defaultSnapshotDir)
	resultsFile := envString("RESULTS_FILE", defaultResultsFile)
	frontMaturity := float64(envInt("FRONT_DTE", defaultFrontDTE)) / 365.0
	backMaturity := float64(envInt("BACK_DTE", defaultBackDTE)) / 365.0
	if backMaturity <= frontMaturity {
		logger.Fatal("BACK_DTE must exceed FRONT_DTE",
			zap.Float64("front", frontMaturity),
			zap.Float64("back", backMaturity))
	}

	paths, err := filepath.Glob(filepath.Join(snapshotDir, "*.json"))
	if err != nil {
		logger.Fatal("Error listing snapshots", zap.String("dir", snapshotDir), zap.Error(err))
	}
	if len(paths) == 0 {
		logger.Fatal("No snapshots found", zap.String("dir", snapshotDir))
	}

	engine := pricing.NewEngine(pricing.DefaultConfig(), logger)

	var allReports []spreadReport
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, path := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			reports, err := scanSnapshot(engine, logger, path, frontMaturity, backMaturity)
			if err != nil {
				logger.Error("Snapshot scan failed", zap.String("path", path), zap.Error(err))
				return
			}

			mu.Lock()
			allReports = append(allReports, reports...)
			mu.Unlock()
		}(path)
	}

	wg.Wait()

	fmt.Printf("Number of identified spreads: %d\n", len(allReports))
	if len(allReports) == 0 {
		fmt.Println("No spreads identified. Check snapshot history and DTE parameters.")
		return
	}

	sort.Slice(allReports, func(i, j int) bool {
		return allReports[i].ThetaPerDebit > allReports[j].ThetaPerDebit
	})

	if len(allReports) > maxReports {
		allReports = allReports[:maxReports]
	}

	printReports(allReports)

	jreports, err := json.Marshal(allReports)
	if err != nil {
		fmt.Printf("Error marshalling reports: %s\n", err.Error())
		return
	}

	err = os.WriteFile(resultsFile, jreports, 0644)
	if err != nil {
		fmt.Printf("Error writing to file %s: %s\n", resultsFile, err.Error())
		return
	}

	fmt.Printf("Successfully wrote %d spreads to %s\n", len(allReports), resultsFile)
}

// scanSnapshot prices the candidate strike ladder for one underlying and
// returns the spreads that cost a positive debit.
func scanSnapshot(engine *pricing.Engine, logger *zap.Logger, path string, frontMaturity, backMaturity float64) ([]spreadReport, error) {
	snap, err := marketdata.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}

	vol := realizedVol(snap.Bars)
	hestonIV := hestonCrossCheck(logger, snap, vol, backMaturity)

	logger.Info("Scanning symbol",
		zap.String("symbol", snap.Symbol),
		zap.Float64("spot", snap.Spot),
		zap.Float64("realized_vol", vol),
		zap.Float64("heston_iv", hestonIV))

	var reports []spreadReport
	for _, m := range strikeLadder {
		strike := snap.Spot * m
		typ := pricing.Put
		if strike > snap.Spot {
			typ = pricing.Call
		}

		out, err := engine.PriceCalendarSpread(pricing.CalendarSpreadParameters{
			Spot:          snap.Spot,
			Strike:        strike,
			FrontMaturity: frontMaturity,
			BackMaturity:  backMaturity,
			RiskFreeRate:  snap.RiskFreeRate,
			DividendYield: snap.DividendYield,
			FrontVol:      vol,
			BackVol:       vol,
			Type:          typ,
		})
		if err != nil {
			logger.Warn("Spread pricing failed",
				zap.String("symbol", snap.Symbol),
				zap.Float64("strike", strike),
				zap.Error(err))
			continue
		}
		if out.NetDebit <= 0 {
			continue
		}

		reports = append(reports, spreadReport{
			Symbol:        snap.Symbol,
			Strike:        strike,
			FrontMaturity: frontMaturity,
			BackMaturity:  backMaturity,
			RealizedVol:   vol,
			HestonIV:      hestonIV,
			ThetaPerDebit: out.NetTheta / out.NetDebit,
			Pricing:       out,
		})
	}

	return reports, nil
}

// realizedVol picks a volatility input for the pricing ladder, preferring
// the one-month Yang-Zhang estimate and falling back through shorter windows
// and simpler estimators before settling on a flat default.
func realizedVol(bars []marketdata.Bar) float64 {
	yz := models.CalculateYangZhangVolatility(bars)
	if v, ok := yz["1m"]; ok {
		return v
	}
	if v, ok := yz["1w"]; ok {
		return v
	}
	gk := models.CalculateGarmanKlassVolatilities(bars)
	if v, ok := gk["1m"]; ok {
		return v
	}
	if v, ok := gk["1w"]; ok {
		return v
	}
	return defaultVol
}

// hestonCrossCheck prices the at-the-money back expiry under a Heston
// parameterization seeded from the realized vol and reports the implied
// volatility of that price. Zero means the check did not complete.
func hestonCrossCheck(logger *zap.Logger, snap *marketdata.Snapshot, vol, maturity float64) float64 {
	h := models.HestonParameters{
		Kappa:         2.0,
		Theta:         vol * vol,
		SigmaV:        0.4,
		Rho:           -0.6,
		V0:            vol * vol,
		RiskFreeRate:  snap.RiskFreeRate,
		DividendYield: snap.DividendYield,
	}
	iv, err := h.ComputeImpliedVolatility(snap.Spot, snap.Spot, maturity, false)
	if err != nil {
		logger.Warn("Heston cross-check failed",
			zap.String("symbol", snap.Symbol),
			zap.Error(err))
		return 0
	}
	return iv
}

func printReports(reports []spreadReport) {
	fmt.Printf("%-8s %10s %8s %8s %9s %9s %10s %11s\n",
		"SYMBOL", "STRIKE", "FRONT", "BACK", "RVOL", "HESTON", "DEBIT", "THETA/DEBIT")
	for _, r := range reports {
		fmt.Printf("%-8s %10.2f %8.3f %8.3f %9.4f %9.4f %10.4f %11.4f\n",
			r.Symbol, r.Strike, r.FrontMaturity, r.BackMaturity,
			r.RealizedVol, r.HestonIV, r.Pricing.NetDebit, r.ThetaPerDebit)
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
