package webui

const defaultIndexHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>kidsearch</title>
  <style>
    body { font-family: "Segoe UI", sans-serif; margin: 0; background: linear-gradient(145deg,#f7fafc,#e9eef7); color: #1f2937; }
    .wrap { max-width: 900px; margin: 0 auto; padding: 20px; }
    .panel { background: #fff; border-radius: 12px; box-shadow: 0 8px 30px rgba(15,23,42,.08); padding: 16px; margin-top: 12px; }
    .row { display: flex; gap: 8px; }
    input { flex: 1; padding: 10px; border: 1px solid #cbd5e1; border-radius: 8px; font-size: 1.1em; }
    button { padding: 10px 16px; border: 0; border-radius: 8px; background: #0f766e; color: #fff; cursor: pointer; }
    button.tab { background: #e2e8f0; color: #1f2937; }
    button.tab.on { background: #0f766e; color: #fff; }
    .item { margin: 14px 0; }
    .item a { font-size: 1.1em; color: #1d4ed8; text-decoration: none; }
    .host { color: #15803d; font-size: .85em; }
    .src { color: #6b7280; font-size: .8em; }
    .grid { display: flex; flex-wrap: wrap; gap: 8px; }
    .grid img { height: 140px; border-radius: 6px; }
    .kp { border-left: 4px solid #0f766e; padding-left: 10px; }
    .msg { color: #b45309; }
  </style>
</head>
<body>
  <div class="wrap">
    <div class="panel">
      <h2>🔎 kidsearch</h2>
      <div class="row">
        <input id="q" placeholder="Tape ta recherche..." />
        <button id="go">🔍</button>
      </div>
      <div class="row" style="margin-top:8px">
        <button class="tab on" data-kind="web">Tous</button>
        <button class="tab" data-kind="images">Images</button>
      </div>
    </div>
    <div class="panel" id="out"></div>
  </div>
  <script>
    const out = document.getElementById('out');
    const q = document.getElementById('q');
    let kind = 'web', page = 1, seq = 0;
    const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
    const esc = (s) => (s || '').replace(/[&<>"]/g, (c) => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]));
    function run(p) {
      const text = q.value.trim();
      if (!text) return;
      page = p || 1;
      ws.send(JSON.stringify({ type: 'search', id: String(++seq), q: text, kind, page }));
    }
    ws.onmessage = (ev) => {
      const msg = JSON.parse(ev.data);
      if (msg.id !== String(seq)) return;
      if (msg.type === 'error') { out.innerHTML = '<p class="msg">' + esc(msg.message) + '</p>'; return; }
      if (msg.type !== 'results') return;
      const d = msg.data;
      let html = '';
      if (d.knowledge_panel) {
        const k = d.knowledge_panel;
        html += '<div class="kp"><b>' + esc(k.title) + '</b><p>' + esc(k.extract) + '</p><a href="' + esc(k.url) + '">' + esc(k.source) + '</a></div>';
      }
      if (!d.items.length) { html += '<p>Aucun résultat.</p>'; }
      if (d.kind === 'images') {
        html += '<div class="grid">' + d.items.map((r) => '<a href="' + esc((r.image && r.image.context_url) || r.link) + '"><img src="' + esc(r.thumbnail_url || r.link) + '" title="' + esc(r.title) + '"/></a>').join('') + '</div>';
      } else {
        html += d.items.map((r) => '<div class="item"><a href="' + esc(r.link) + '">' + esc(r.title) + '</a><div class="host">' + esc(r.display_host) + ' <span class="src">' + esc(r.source) + '</span></div><div>' + (r.snippet_html || esc(r.snippet)) + '</div></div>').join('');
      }
      if (d.has_more_pages) { html += '<button onclick="run(' + (page + 1) + ')">Suivant →</button>'; }
      out.innerHTML = html;
    };
    document.getElementById('go').addEventListener('click', () => run(1));
    q.addEventListener('keydown', (e) => { if (e.key === 'Enter') run(1); });
    document.querySelectorAll('.tab').forEach((b) => b.addEventListener('click', () => {
      document.querySelectorAll('.tab').forEach((x) => x.classList.remove('on'));
      b.classList.add('on');
      kind = b.dataset.kind;
      run(1);
    }));
  </script>
</body>
</html>`
