package cdpsurface

import (
	"log/slog"
	"net/http"
)

// BindingName is the page function that forwards chart events to Go.
const BindingName = "__annotatorEmit"

// PageHandler serves the chart page that hosts one lightweight-charts
// instance per pane. Panes are created by Browser.Connect.
func PageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if _, err := w.Write([]byte(chartPageHTML)); err != nil {
			slog.Debug("chart page write failed", "error", err)
		}
	})
}

const chartPageHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Chart Annotator</title>
  <style>
    body { margin: 0; background: #0d1117; color: #c9d1d9; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; }
    #panes { display: flex; flex-direction: column; gap: 4px; padding: 4px; }
    .pane { position: relative; touch-action: none; }
  </style>
  <script src="https://unpkg.com/lightweight-charts@4.1.3/dist/lightweight-charts.standalone.production.js"></script>
</head>
<body>
  <div id="panes"></div>
  <script>` + chartPageJS + `</script>
</body>
</html>`

const chartPageJS = `
(function(){
var LC = window.LightweightCharts;
var panes = {};
var order = [];

function emit(msg) {
  if (typeof window.` + BindingName + ` === "function") {
    window.` + BindingName + `(JSON.stringify(msg));
  }
}

function num(v) { return (typeof v === "number" && isFinite(v)) ? v : null; }

function seriesOptions(kind, style) {
  style = style || {};
  var o = {
    color: style.color || "#2962ff",
    lineWidth: style.lineWidth || 2,
    lineStyle: style.lineStyle || 0,
    title: style.title || "",
    lastValueVisible: false,
    priceLineVisible: false,
    crosshairMarkerVisible: false
  };
  if (kind === "dots") {
    o.lineVisible = false;
    o.pointMarkersVisible = true;
    o.pointMarkersRadius = style.pointRadius || 4;
  }
  return o;
}

function createPane(entry) {
  var el = document.createElement("div");
  el.className = "pane";
  el.id = "pane-" + entry.id;
  el.style.width = entry.width + "px";
  el.style.height = entry.height + "px";
  document.getElementById("panes").appendChild(el);

  var chart = LC.createChart(el, {
    width: entry.width,
    height: entry.height,
    layout: { background: { color: "#0d1117" }, textColor: "#c9d1d9" },
    grid: { vertLines: { color: "#161b22" }, horzLines: { color: "#161b22" } },
    crosshair: { mode: LC.CrosshairMode.Normal },
    timeScale: { timeVisible: true, secondsVisible: false }
  });
  var primary = chart.addLineSeries({ color: "#8b949e", lineWidth: 1, title: entry.title || "" });
  var p = { id: entry.id, el: el, chart: chart, series: { 0: primary }, next: 0, captures: 0 };

  function locate(type, x, y) {
    return {
      pane: entry.id, type: type, x: x, y: y,
      time: num(chart.timeScale().coordinateToTime(x)),
      price: num(primary.coordinateToPrice(y))
    };
  }
  function local(ev) {
    var r = el.getBoundingClientRect();
    return { x: ev.clientX - r.left, y: ev.clientY - r.top };
  }

  chart.subscribeClick(function(param) {
    if (!param.point) return;
    emit(locate("click", param.point.x, param.point.y));
  });
  chart.subscribeCrosshairMove(function(param) {
    if (!param.point) { emit({ pane: entry.id, type: "leave" }); return; }
    var m = locate("crosshair", param.point.x, param.point.y);
    if (param.time !== undefined) m.time = num(param.time);
    emit(m);
  });
  chart.timeScale().subscribeVisibleTimeRangeChange(function(r) {
    emit({ pane: entry.id, type: "range", from: r ? num(r.from) : null, to: r ? num(r.to) : null });
  });

  ["pointerdown", "pointermove", "pointerup"].forEach(function(name) {
    el.addEventListener(name, function(ev) {
      var c = local(ev);
      var m = locate("pointer", c.x, c.y);
      m.phase = name.slice(7);
      emit(m);
    }, true);
  });
  function onDocument(ev) {
    if (p.captures === 0 || el.contains(ev.target)) return;
    var c = local(ev);
    var m = locate("capture", c.x, c.y);
    m.phase = ev.type.slice(7);
    emit(m);
  }
  document.addEventListener("pointermove", onDocument, true);
  document.addEventListener("pointerup", onDocument, true);

  panes[entry.id] = p;
  order.push(entry.id);
}

function pane(id) {
  var p = panes[id];
  if (!p) throw { code: "SURFACE_NOT_FOUND", message: "pane " + id + " not found" };
  return p;
}
function series(p, id) {
  var s = p.series[id];
  if (!s) throw { code: "VALIDATION", message: "series " + id + " not found on pane " + p.id };
  return s;
}

window.__annotator = {
  loaded: true,
  ready: false,
  init: function(layout) {
    for (var i = 0; i < layout.length; i++) {
      if (!panes[layout[i].id]) createPane(layout[i]);
    }
    this.ready = true;
    return order.slice();
  },
  panes: function() { return order.slice(); },
  addSeries: function(id, kind, style) {
    var p = pane(id);
    p.next += 1;
    p.series[p.next] = p.chart.addLineSeries(seriesOptions(kind, style));
    return p.next;
  },
  removeSeries: function(id, sid) {
    var p = pane(id);
    p.chart.removeSeries(series(p, sid));
    delete p.series[sid];
    return true;
  },
  setData: function(id, sid, points) {
    var p = pane(id);
    series(p, sid).setData(points.map(function(pt) { return { time: pt.time, value: pt.value }; }));
    return points.length;
  },
  setOptions: function(id, sid, kind, style) {
    var p = pane(id);
    series(p, sid).applyOptions(seriesOptions(kind, style));
    return true;
  },
  setMarkers: function(id, sid, markers) {
    var p = pane(id);
    series(p, sid).setMarkers(markers.map(function(m) {
      return { time: m.time, position: "aboveBar", shape: "circle", color: m.color || "#e6edf3", text: m.text, size: 0 };
    }));
    return markers.length;
  },
  setCrosshair: function(id, value, time, sid) {
    var p = pane(id);
    p.chart.setCrosshairPosition(value, time, series(p, sid));
    return true;
  },
  clearCrosshair: function(id) {
    pane(id).chart.clearCrosshairPosition();
    return true;
  },
  setVisibleRange: function(id, from, to) {
    pane(id).chart.timeScale().setVisibleRange({ from: from, to: to });
    return true;
  },
  capture: function(id, on) {
    var p = pane(id);
    p.captures = Math.max(0, p.captures + (on ? 1 : -1));
    return p.captures;
  },
  coordinateToTime: function(id, x) { return num(pane(id).chart.timeScale().coordinateToTime(x)); },
  coordinateToPrice: function(id, y) { return num(pane(id).series[0].coordinateToPrice(y)); },
  rect: function(id) {
    var r = pane(id).el.getBoundingClientRect();
    return { x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: r.height };
  }
};
})();
`
