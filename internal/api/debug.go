package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/poseplot"
)

// echartsAssetsHost serves the echarts javascript for the debug pages.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// AttachDebugRoutes mounts the signal chart and the pose plot on the tsweb
// debug page of mux, plus the SQL console when a store is configured.
func (s *Server) AttachDebugRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	debug.Handle("signal", "Matching signal chart", http.HandlerFunc(s.handleSignalChart))
	debug.Handle("pose.png", "Live pose aligned onto the reference frame", http.HandlerFunc(s.handlePosePlot))
	debug.Handle("session", "Session state (JSON)", http.HandlerFunc(s.showSession))
	if s.store != nil {
		if err := s.store.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}
	return nil
}

// handleSignalChart renders the recent average distance and similarity as
// an echarts line chart.
func (s *Server) handleSignalChart(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "feedback hub not configured")
		return
	}
	points := s.hub.Signal()

	x := make([]string, len(points))
	dist := make([]opts.LineData, len(points))
	sim := make([]opts.LineData, len(points))
	for i, p := range points {
		x[i] = strconv.FormatUint(p.Seq, 10)
		if p.AvgDistance == nil {
			dist[i] = opts.LineData{Value: "-"}
			sim[i] = opts.LineData{Value: "-"}
			continue
		}
		dist[i] = opts.LineData{Value: *p.AvgDistance, Name: string(p.Verdict)}
		sim[i] = opts.LineData{Value: p.Similarity, Name: string(p.Verdict)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Posture matching signal", Width: "100%", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Matching signal", Subtitle: fmt.Sprintf("session=%s samples=%d tolerance=%.2f", s.sess.ID(), len(points), s.sess.Tolerance())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "seq", NameLocation: "middle", NameGap: 25}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "similarity %", Min: 0, Max: 100})
	line.SetXAxis(x).
		AddSeries("avg distance", dist).
		AddSeries("similarity %", sim, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handlePosePlot renders the smoothed live pose aligned onto the reference
// frame at the playback index.
func (s *Server) handlePosePlot(w http.ResponseWriter, r *http.Request) {
	res, ok := s.sess.CurrentAlignment()
	if !ok {
		httputil.NotFound(w, "no reference or live pose to plot")
		return
	}
	info, _ := s.sess.Reference()

	var buf bytes.Buffer
	title := fmt.Sprintf("reference frame %d/%d", info.Index+1, info.Frames)
	if err := poseplot.Skeleton(&buf, title, res); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
