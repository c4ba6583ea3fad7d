package httpapi

import (
	"fmt"
	"net/http"
)

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>StatRelay Dashboard</title>
  <style>
    :root {
      --ink: #102223;
      --paper: #f8f4ea;
      --card: #fffdf9;
      --line: #d7cbb3;
      --accent: #1f9d88;
      --accent-2: #e88a3d;
      --muted: #6f7d7d;
      --shadow: 0 18px 36px rgba(16, 34, 35, 0.16);
    }

    * { box-sizing: border-box; }

    body {
      margin: 0;
      font-family: "Space Grotesk", "Avenir Next", "Segoe UI", sans-serif;
      color: var(--ink);
      background: linear-gradient(140deg, #fff9ef 0%, #f1f8f7 45%, #fffdf9 100%);
      min-height: 100vh;
      padding: 20px;
    }

    .shell {
      max-width: 1100px;
      margin: 0 auto;
      display: grid;
      gap: 14px;
    }

    .bar, .card {
      background: var(--card);
      border: 1px solid var(--line);
      border-radius: 18px;
      padding: 16px;
      box-shadow: var(--shadow);
    }

    h1 { margin: 0; font-size: 1.5rem; }
    h2 { margin: 0 0 10px; font-size: 1rem; color: var(--muted); text-transform: uppercase; letter-spacing: 0.08em; }

    .sub { margin-top: 6px; color: var(--muted); font-size: 0.9rem; }

    .grid {
      display: grid;
      gap: 14px;
      grid-template-columns: repeat(auto-fit, minmax(300px, 1fr));
    }

    table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
    th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid var(--line); }
    th { color: var(--muted); font-weight: 600; }

    .count { font-size: 1.6rem; font-weight: 700; color: var(--accent); }

    .growth-row { display: flex; align-items: center; gap: 8px; font-size: 0.8rem; }
    .growth-bar { height: 10px; background: var(--accent-2); border-radius: 5px; }

    .messages {
      max-height: 420px;
      overflow-y: auto;
      display: grid;
      gap: 8px;
    }
    .msg {
      border: 1px solid var(--line);
      border-radius: 10px;
      padding: 8px 10px;
      font-size: 0.85rem;
      background: #fff;
    }
    .msg .meta { color: var(--muted); font-size: 0.75rem; margin-bottom: 4px; }

    pre#logs {
      max-height: 320px;
      overflow: auto;
      font-size: 0.75rem;
      background: #102223;
      color: #d6f3ec;
      border-radius: 10px;
      padding: 10px;
      white-space: pre-wrap;
    }
  </style>
</head>
<body>
  <div class="shell">
    <div class="bar">
      <h1>StatRelay</h1>
      <div class="sub">Live aggregate of ingested bot events. Refreshes every 10 seconds. <span id="status"></span></div>
    </div>

    <div class="grid">
      <div class="card">
        <h2>Actions by amount</h2>
        <table id="actions"><tbody></tbody></table>
      </div>
      <div class="card">
        <h2>Users</h2>
        <div class="count" id="userCount">0</div>
        <table id="users"><tbody></tbody></table>
      </div>
      <div class="card">
        <h2>Daily active (30 days)</h2>
        <div id="growth"></div>
      </div>
    </div>

    <div class="card">
      <h2>Recent messages</h2>
      <div class="messages" id="messages"></div>
    </div>

    <div class="card">
      <h2>Service logs</h2>
      <button id="loadLogs">Load logs</button>
      <pre id="logs"></pre>
    </div>
  </div>

  <script>
    (function () {
      const statusEl = document.getElementById("status");

      function esc(value) {
        const div = document.createElement("div");
        div.textContent = value == null ? "" : String(value);
        return div.innerHTML;
      }

      function render(payload) {
        const stats = payload.stats || {};

        const actionRows = Object.entries(stats.actionCounts || {})
          .sort((a, b) => Number(a[0]) - Number(b[0]))
          .map(([amount, count]) => "<tr><td>" + esc(amount) + "€</td><td>" + esc(count) + "</td></tr>")
          .join("");
        document.querySelector("#actions tbody").innerHTML = actionRows;

        const users = stats.userList || [];
        document.getElementById("userCount").textContent = users.length;
        document.querySelector("#users tbody").innerHTML = users
          .map((u) => "<tr><td>" + esc(u.name) + "</td><td>" + esc(u.id) + "</td></tr>")
          .join("");

        const growth = stats.userGrowth || {};
        const days = Object.keys(growth).sort();
        const max = Math.max(1, ...days.map((d) => growth[d]));
        document.getElementById("growth").innerHTML = days
          .map((d) => {
            const width = Math.round((growth[d] / max) * 100);
            return '<div class="growth-row"><span>' + esc(d) + '</span><span class="growth-bar" style="width:' + width + 'px"></span><span>' + esc(growth[d]) + "</span></div>";
          })
          .join("");

        document.getElementById("messages").innerHTML = (payload.rawMessages || [])
          .map((m) => '<div class="msg"><div class="meta">' + esc(m.user) + " · " + esc(m.timestamp) + "</div>" + esc(m.text) + "</div>")
          .join("");
      }

      async function refresh() {
        try {
          const resp = await fetch("/api/stats");
          if (!resp.ok) throw new Error("status " + resp.status);
          render(await resp.json());
          statusEl.textContent = "";
        } catch (err) {
          statusEl.textContent = "refresh failed: " + err.message;
        }
      }

      document.getElementById("loadLogs").addEventListener("click", async () => {
        const logsEl = document.getElementById("logs");
        logsEl.textContent = "loading…";
        try {
          const resp = await fetch("/api/logs");
          logsEl.textContent = await resp.text();
        } catch (err) {
          logsEl.textContent = "failed: " + err.message;
        }
      });

      if ("WebSocket" in window) {
        try {
          const proto = window.location.protocol === "https:" ? "wss:" : "ws:";
          const sock = new WebSocket(proto + "//" + window.location.host + "/api/stats/live");
          sock.onmessage = (event) => render(JSON.parse(event.data));
        } catch (err) {
          // fall back to polling only
        }
      }

      refresh();
      setInterval(refresh, 10000);
    })();
  </script>
</body>
</html>`

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, dashboardHTML)
}
