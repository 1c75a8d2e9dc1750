package api

const streamDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>State Stream - Chart Annotator</title>
  <style>
    body { margin: 0; background: #0d1117; color: #c9d1d9; font: 14px/1.6 system-ui, sans-serif; }
    header { display: flex; gap: 16px; align-items: baseline; padding: 12px 24px; background: #161b22; border-bottom: 1px solid #30363d; }
    header strong { color: #e6edf3; }
    a { color: #58a6ff; }
    main { max-width: 860px; margin: 0 auto; padding: 16px 24px 48px; }
    h2 { color: #e6edf3; font-size: 18px; margin-top: 32px; border-bottom: 1px solid #21262d; padding-bottom: 6px; }
    h3 { color: #e6edf3; font-size: 14px; }
    table { border-collapse: collapse; width: 100%; font-size: 13px; }
    th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #21262d; }
    code, pre { font-family: ui-monospace, Menlo, Consolas, monospace; font-size: 13px; }
    pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 12px; overflow-x: auto; }
  </style>
</head>
<body>
  <header>
    <strong>Chart Annotator: state stream</strong>
    <a href="/docs">REST API</a>
    <a href="#sse-format">Event format</a>
    <a href="#examples">Examples</a>
  </header>
  <main>
    <h2 id="overview">Overview</h2>
    <p>The annotator publishes a session snapshot every time an input changes the
    authoring state: a committed or deleted annotation, a drag step, a mode
    toggle, a reset or a symbol switch. Pure hover moves that only refresh the
    preview are not published.</p>

    <h2 id="endpoint">Endpoint</h2>
    <pre><code>GET /api/v1/events</code></pre>
    <h3>Query Parameters</h3>
    <table>
      <thead><tr><th>Name</th><th>Description</th></tr></thead>
      <tbody>
        <tr><td><code>topics</code></td><td>Comma separated topic filter. Omit to receive every topic.</td></tr>
      </tbody>
    </table>
    <h3>Response Headers</h3>
    <table>
      <thead><tr><th>Header</th><th>Value</th></tr></thead>
      <tbody>
        <tr><td><code>Content-Type</code></td><td><code>text/event-stream</code></td></tr>
        <tr><td><code>Cache-Control</code></td><td><code>no-cache</code></td></tr>
        <tr><td><code>X-Accel-Buffering</code></td><td><code>no</code></td></tr>
      </tbody>
    </table>

    <h2 id="topics">Topics</h2>
    <h3><code>state</code></h3>
    <p>The same document as <code>GET /api/v1/state</code>: session id, symbol,
    mode, phase, selection, point buffer, hover point, preview geometry and the
    committed annotations in store order.</p>

    <h2 id="sse-format">SSE Event Format</h2>
    <pre><code>id: 12
event: state
data: {"session_id":"...","symbol":"BTCUSD","mode":"trendline","phase":"idle","selected":-1,"buffer":[{"time":1700000000,"value":42000}],"preview":{},"annotations":[]}
</code></pre>
    <p><code>id</code> increases with every published event across all topics.
    A new connection first receives the most recent event of each topic.
    Idle streams receive a <code>: keep-alive</code> comment every 15 seconds.</p>

    <h2 id="examples">Examples</h2>
    <h3>Browser EventSource</h3>
    <pre><code>const sse = new EventSource("/api/v1/events?topics=state");
sse.addEventListener("state", (e) =&gt; {
  const snap = JSON.parse(e.data);
  console.log(snap.mode, snap.annotations.length);
});</code></pre>
    <h3>curl</h3>
    <pre><code>curl -N http://127.0.0.1:8190/api/v1/events</code></pre>

    <h2 id="notes">Notes</h2>
    <ul>
      <li>Slow subscribers drop events rather than stall the session; the drop count is exported on <code>/metrics</code>.</li>
      <li>A symbol switch publishes a snapshot with a new <code>session_id</code> and no annotations.</li>
    </ul>
  </main>
</body>
</html>`
