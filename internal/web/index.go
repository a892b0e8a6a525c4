package web

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

func (s *Server) indexHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			_, _ = io.WriteString(w, indexHTML)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		gzw := &gzipResponseWriter{ResponseWriter: w, writer: gz}
		_, _ = io.WriteString(gzw, indexHTML)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.writer.Write(b)
}

// Wallet dashboard: connect, balances, transfer form and activity log.
// The side panel stands in for the wallet extension popup.
const indexHTML = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="utf-8" />
  <title>Wallet Dashboard</title>
  <link rel="preconnect" href="https://fonts.googleapis.com">
  <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --ink-soft:#9c9c9c;
      --panel:#f6f6f6;
      --bad:crimson;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      display:flex;
      align-items:flex-start;
      justify-content:center;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      width:min(1200px, 96vw);
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:grid;
      grid-template-columns:1fr 320px;
      gap:2rem;
    }
    .main-content { display:flex; flex-direction:column; gap:1.5rem; }
    header { display:flex; justify-content:space-between; align-items:center; gap:1rem; }
    h1 {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.8rem;
      letter-spacing:.15em;
      text-transform:uppercase;
      margin:0;
    }
    .card {
      border:3px solid var(--ink);
      padding:1.2rem;
      background:#fff;
      box-shadow:6px 6px 0 rgba(0,0,0,.12);
    }
    .label {
      font-size:.62rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      color:var(--ink-mid);
      margin-bottom:.6rem;
    }
    button, select, input {
      font-family:inherit;
      font-size:.75rem;
      border:2px solid var(--ink);
      background:#fff;
      padding:.45rem .8rem;
    }
    button { cursor:pointer; box-shadow:3px 3px 0 rgba(0,0,0,.15); text-transform:uppercase; letter-spacing:.08em; }
    button:disabled { color:var(--ink-soft); border-color:var(--ink-soft); cursor:not-allowed; }
    #status { font-size:.75rem; min-height:1.2em; }
    #status.error { color:var(--bad); }
    #balancesGrid { display:grid; grid-template-columns:repeat(auto-fill, minmax(140px, 1fr)); gap:.8rem; }
    .tokenCell { border:2px solid var(--ink); padding:.7rem; background:#fefefe; }
    .tokenSymbol { font-size:.6rem; letter-spacing:.15em; color:var(--ink-mid); }
    .tokenAmount { font-size:1rem; font-weight:700; margin-top:.3rem; word-break:break-all; }
    .tokenAmount.err { color:var(--bad); }
    .form { display:grid; grid-template-columns:140px 1fr 140px auto; gap:.6rem; }
    #logArea {
      width:100%;
      height:220px;
      resize:vertical;
      font-family:inherit;
      font-size:.7rem;
      border:2px solid var(--ink);
      padding:.6rem;
      white-space:pre;
    }
    .sidebar { display:flex; flex-direction:column; gap:1rem; }
    .sidebar select, .sidebar button { width:100%; margin-top:.4rem; }
  </style>
</head>
<body>
  <div id="app">
    <div class="main-content">
      <header>
        <h1>Wallet Dashboard</h1>
        <div>
          <button id="connectBtn">Conectar wallet</button>
          <button id="refreshBtn">Refrescar</button>
        </div>
      </header>
      <div id="status"></div>
      <section class="card">
        <div class="label">Wallet</div>
        <div id="walletInfo">No conectado</div>
      </section>
      <section class="card">
        <div class="label">Balances</div>
        <div id="balancesGrid"></div>
      </section>
      <section class="card">
        <div class="label">Enviar</div>
        <div class="form">
          <select id="tokenSelect"><option value="ETH">ETH / Native</option></select>
          <input id="recipient" placeholder="0x..." autocomplete="off" />
          <input id="amount" placeholder="0.0" autocomplete="off" />
          <button id="sendBtn">Enviar</button>
        </div>
      </section>
      <section class="card">
        <div class="label">Log</div>
        <textarea id="logArea" readonly></textarea>
      </section>
    </div>
    <aside class="sidebar">
      <section class="card">
        <div class="label">Extensión de wallet</div>
        <label>Cuenta<select id="walletAccount"></select></label>
        <label>Red<select id="walletNetwork"></select></label>
        <button id="walletLock">Bloquear</button>
      </section>
      <section class="card">
        <div class="label">Historial</div>
        <div id="history"></div>
      </section>
    </aside>
  </div>
  <script>
    const el = {
      connectBtn: document.getElementById('connectBtn'),
      refreshBtn: document.getElementById('refreshBtn'),
      status: document.getElementById('status'),
      walletInfo: document.getElementById('walletInfo'),
      balancesGrid: document.getElementById('balancesGrid'),
      tokenSelect: document.getElementById('tokenSelect'),
      recipient: document.getElementById('recipient'),
      amount: document.getElementById('amount'),
      sendBtn: document.getElementById('sendBtn'),
      logArea: document.getElementById('logArea'),
      walletAccount: document.getElementById('walletAccount'),
      walletNetwork: document.getElementById('walletNetwork'),
      walletLock: document.getElementById('walletLock'),
      history: document.getElementById('history'),
    };

    let version = -1;
    let alertSeq = null;

    const shortAddr = (a) => a ? a.slice(0, 6) + '…' + a.slice(-4) : '';
    const pad = (n) => String(n).padStart(2, '0');
    const clock = (ts) => { const d = new Date(ts); return pad(d.getHours()) + ':' + pad(d.getMinutes()) + ':' + pad(d.getSeconds()); };

    function text(tag, cls, value) {
      const n = document.createElement(tag);
      if (cls) n.className = cls;
      n.textContent = value;
      return n;
    }

    function render(state) {
      if (state.version <= version) return;
      version = state.version;

      el.status.textContent = state.status || '';
      el.status.classList.toggle('error', !!state.status_error);

      el.walletInfo.innerHTML = '';
      if (state.wallet_info) {
        const w = state.wallet_info;
        el.walletInfo.appendChild(text('div', '', 'Cuenta: ' + shortAddr(w.account)));
        el.walletInfo.appendChild(text('div', '', 'Red: ' + w.network + ' (' + w.chain_id + ')'));
        el.walletInfo.appendChild(text('div', '', 'Balance: ' + w.balance + ' ' + w.native_symbol));
      } else {
        el.walletInfo.textContent = state.wallet_message || '';
      }

      el.balancesGrid.innerHTML = '';
      for (const c of state.balances || []) {
        const cell = text('div', 'tokenCell', '');
        cell.appendChild(text('div', 'tokenSymbol', c.symbol));
        cell.appendChild(text('div', 'tokenAmount' + (c.amount === 'err' ? ' err' : ''), c.amount));
        el.balancesGrid.appendChild(cell);
      }

      const selected = el.tokenSelect.value;
      el.tokenSelect.innerHTML = '';
      for (const o of state.token_options || []) {
        const opt = text('option', '', o.label);
        opt.value = o.value;
        el.tokenSelect.appendChild(opt);
      }
      if ([...el.tokenSelect.options].some((o) => o.value === selected)) el.tokenSelect.value = selected;

      el.sendBtn.disabled = !state.send_enabled;
      el.logArea.value = (state.log || []).map((e) => '[' + clock(e.ts) + '] ' + e.message).join('\n');

      if (alertSeq !== null && state.alert_seq > alertSeq && state.alert) window.alert(state.alert);
      alertSeq = state.alert_seq;
    }

    async function post(path, body) {
      const res = await fetch(path, { method: 'POST', body: body || new URLSearchParams() });
      const data = await res.json().catch(() => null);
      if (data && data.state) render(data.state);
      return data;
    }

    async function loadWallet() {
      const res = await fetch('/wallet');
      if (!res.ok) { el.walletLock.disabled = true; return; }
      const data = await res.json();
      el.walletAccount.innerHTML = '';
      for (const a of data.accounts || []) {
        const opt = text('option', '', shortAddr(a));
        opt.value = a;
        el.walletAccount.appendChild(opt);
      }
      el.walletNetwork.innerHTML = '';
      for (const n of data.networks || []) {
        const opt = text('option', '', n.name);
        opt.value = n.name;
        el.walletNetwork.appendChild(opt);
      }
    }

    async function loadHistory() {
      const res = await fetch('/transfers?limit=10');
      if (!res.ok) return;
      const rows = await res.json();
      el.history.innerHTML = '';
      for (const t of rows || []) {
        el.history.appendChild(text('div', '', t.amount + ' ' + t.symbol + ' → ' + shortAddr(t.to) + ' · ' + t.status));
      }
    }

    el.connectBtn.onclick = () => post('/connect');
    el.refreshBtn.onclick = () => post('/refresh');
    el.sendBtn.onclick = async () => {
      const body = new URLSearchParams({
        token: el.tokenSelect.value,
        recipient: el.recipient.value.trim(),
        amount: el.amount.value.trim(),
      });
      await post('/send', body);
      loadHistory();
    };
    el.walletAccount.onchange = () => post('/wallet/account', new URLSearchParams({ account: el.walletAccount.value }));
    el.walletNetwork.onchange = () => post('/wallet/network', new URLSearchParams({ network: el.walletNetwork.value }));
    el.walletLock.onclick = () => post('/wallet/lock');

    fetch('/state').then((r) => r.json()).then(render);
    const stream = new EventSource('/page/stream');
    stream.addEventListener('page', (ev) => render(JSON.parse(ev.data)));

    loadWallet();
    loadHistory();
  </script>
</body>
</html>
`
