package webpick

import (
	"image"
	"io"

	"github.com/anthonynsimon/bild/imgio"
)

func imagePNG(w io.Writer, img image.Image) error {
	return imgio.PNGEncoder()(w, img)
}

// pickPage maps each click on the strip back to a source column using the
// ratio of natural to displayed width, so the strip may be scaled by CSS.
const pickPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Graticule calibration</title>
<style>
  body { font-family: sans-serif; margin: 1em; }
  #strip { width: 100%; image-rendering: pixelated; cursor: crosshair; border: 1px solid #888; }
  #profile { width: 100%; margin-top: 1em; }
  #status { margin: .5em 0; font-weight: bold; }
</style>
</head>
<body>
<h1>Graticule calibration</h1>
<p>Click the leading edge of the first reference line, then the leading edge of the last one.</p>
<div id="status">Loading...</div>
<img id="strip" src="/strip.png" alt="graticule band">
<img id="profile" src="/profile.png" alt="intensity profile" onerror="this.style.display='none'">
<script>
const status = document.getElementById('status');
const strip = document.getElementById('strip');
let finished = false;

function show(state) {
  const xs = state.points.map(p => p.x).join(', ');
  if (state.points.length >= state.needed) {
    finished = true;
    status.textContent = 'Done: x = ' + xs + '. You can close this page.';
  } else {
    status.textContent = 'Row ' + state.row + ': ' + state.points.length + ' of ' + state.needed + ' points' + (xs ? ' (x = ' + xs + ')' : '');
  }
}

fetch('/api/state').then(r => r.json()).then(show);

strip.addEventListener('click', e => {
  if (finished) return;
  const scale = strip.naturalWidth / strip.clientWidth;
  const x = Math.round(e.offsetX * scale);
  fetch('/api/points', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({x: x})
  }).then(r => r.json()).then(s => { if (s.error) { status.textContent = s.error; } else { show(s); } });
});

window.addEventListener('pagehide', () => {
  if (!finished) navigator.sendBeacon('/api/abort');
});
</script>
</body>
</html>
`
