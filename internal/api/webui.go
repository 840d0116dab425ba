package api

const webUI = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Till Bridge</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}

/* Header */
.hdr{background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between}
.hdr h1{font-size:18px;font-weight:600}
.hdr-dot{width:10px;height:10px;border-radius:50%;display:inline-block;margin-left:8px}
.dot-green{background:#22c55e}.dot-red{background:#ef4444}.dot-yellow{background:#f59e0b}.dot-gray{background:#9ca3af}

/* Content */
.content{max-width:900px;margin:0 auto;padding:20px}
.card{background:#fff;border-radius:8px;padding:20px;margin-bottom:16px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.card h2{font-size:16px;margin-bottom:12px;padding-bottom:8px;border-bottom:1px solid #eee}
.row{display:flex;justify-content:space-between;padding:6px 0;border-bottom:1px solid #f0f0f0;font-size:14px}
.row:last-child{border-bottom:none}
.label{color:#666}

/* Buttons */
.btn{display:inline-flex;align-items:center;padding:8px 16px;border-radius:6px;border:none;cursor:pointer;font-size:14px;font-weight:500}
.btn:disabled{opacity:.5;cursor:not-allowed}
.btn-primary{background:#667eea;color:#fff}
.btn-secondary{background:#e5e7eb;color:#374151}
.btn-row{display:flex;gap:8px;flex-wrap:wrap;margin-top:12px}

/* Tables */
table{width:100%;border-collapse:collapse;font-size:13px}
th,td{text-align:left;padding:6px 8px;border-bottom:1px solid #f0f0f0}
th{color:#666;font-weight:500}
.st-opened{color:#166534}.st-failed{color:#991b1b}.st-rejected{color:#92400e}
.lvl-warning{color:#92400e}.lvl-error{color:#991b1b}.lvl-success{color:#166534}
</style>
</head>
<body>
<div class="hdr">
  <h1>Till Bridge</h1>
  <span id="daemon">tray daemon <span class="hdr-dot dot-gray" id="daemon-dot"></span></span>
</div>
<div class="content">
  <div class="card">
    <h2>Status</h2>
    <div class="row"><span class="label">Version</span><span id="version">-</span></div>
    <div class="row"><span class="label">Tray daemon</span><span id="tray">-</span></div>
    <div class="row"><span class="label">Session register</span><span id="session">-</span></div>
    <div class="row"><span class="label">Mapped registers</span><span id="registers">-</span></div>
    <div class="row"><span class="label">Page rules</span><span id="rules">-</span></div>
    <div class="btn-row">
      <button class="btn btn-primary" id="open-btn" onclick="openDrawer()">Open Drawer</button>
      <button class="btn btn-secondary" onclick="recheck()">Recheck Daemon</button>
    </div>
  </div>

  <div class="card">
    <h2>Recent Operations</h2>
    <table><thead><tr><th>Started</th><th>Register</th><th>Printer</th><th>Status</th><th>Error</th></tr></thead>
    <tbody id="ops"></tbody></table>
  </div>

  <div class="card">
    <h2>Notices</h2>
    <table><tbody id="notices"></tbody></table>
    <div class="btn-row">
      <button class="btn btn-secondary" onclick="clearNotices()">Clear</button>
    </div>
  </div>
</div>

<script>
function esc(s){return String(s==null?'':s).replace(/[&<>"]/g,function(c){return {'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]})}
function t(ts){return ts?new Date(ts).toLocaleTimeString():''}

async function fetchStatus(){
  try{
    const d=await (await fetch('/api/status')).json();
    document.getElementById('version').textContent=d.version||'dev';
    document.getElementById('tray').textContent=d.tray_url+' ('+d.daemon+')';
    document.getElementById('session').textContent=d.session_register||'none';
    document.getElementById('registers').textContent=d.registers;
    document.getElementById('rules').textContent=d.rules;
    document.getElementById('open-btn').disabled=d.busy;
    const dot=document.getElementById('daemon-dot');
    dot.className='hdr-dot '+({available:'dot-green',unavailable:'dot-red',checking:'dot-yellow'}[d.daemon]||'dot-gray');
  }catch(e){}
}

async function fetchOps(){
  const d=await (await fetch('/api/operations')).json();
  document.getElementById('ops').innerHTML=d.operations.map(function(o){
    return '<tr><td>'+t(o.started_at)+'</td><td>'+esc(o.register_id)+'</td><td>'+esc(o.printer)+'</td><td class="st-'+esc(o.status)+'">'+esc(o.status)+'</td><td>'+esc(o.error)+'</td></tr>';
  }).join('');
}

async function fetchNotices(){
  const d=await (await fetch('/api/notices')).json();
  document.getElementById('notices').innerHTML=d.notices.slice(-20).reverse().map(function(n){
    return '<tr><td>'+t(n.timestamp)+'</td><td class="lvl-'+esc(n.level)+'">'+esc(n.level)+'</td><td>'+esc(n.message)+'</td></tr>';
  }).join('');
}

async function openDrawer(){
  await fetch('/api/drawer/open',{method:'POST'});
  refresh();
}

async function clearNotices(){
  await fetch('/api/notices',{method:'DELETE'});
  fetchNotices();
}

async function recheck(){
  await fetch('/api/availability/recheck',{method:'POST'});
  refresh();
}

function refresh(){fetchStatus();fetchOps();fetchNotices()}
refresh();
setInterval(refresh,5000);
</script>
</body>
</html>`
