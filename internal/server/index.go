package server

// indexHTML is the hold-to-talk page
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>FunnyVoice</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css">
    <style>
        #talk { width: 12rem; height: 12rem; border-radius: 50%; font-size: 1.2rem; }
        #talk.recording { background: #c0392b; }
        .effects button { margin: 0.25rem; }
        .effects button.selected { background: #ff6b35; }
    </style>
</head>
<body>
    <main class="container">
        <h1>FunnyVoice</h1>
        <p id="instruction">Press and hold to record</p>
        <button id="talk">Hold</button>
        <p><span id="elapsed">00:00</span> &middot; <span id="size">0 B</span></p>
        <div class="effects" id="effects"></div>
        <p id="error"></p>
    </main>
    <script>
        const talk = document.getElementById('talk');
        const post = (path, body) => fetch(path, {method: 'POST', body});

        function render(st) {
            document.getElementById('instruction').textContent = st.instruction;
            document.getElementById('elapsed').textContent = st.elapsed_text;
            document.getElementById('size').textContent = st.size_text;
            document.getElementById('error').textContent = st.last_error || '';
            talk.classList.toggle('recording', st.mode === 'RECORDING');
        }

        function refresh() {
            fetch('/api/status').then(r => r.json()).then(r => render(r.status));
        }

        function loadEffects() {
            fetch('/api/effects').then(r => r.json()).then(r => {
                const box = document.getElementById('effects');
                box.innerHTML = '';
                r.effects.forEach(e => {
                    const b = document.createElement('button');
                    b.textContent = e.display_name + ' (' + e.pitch_label + ')';
                    if (e.is_selected) b.classList.add('selected');
                    b.onclick = () => {
                        const form = new FormData();
                        form.append('effect', e.id);
                        post('/api/effects/select', new URLSearchParams(form)).then(loadEffects);
                    };
                    box.appendChild(b);
                });
            });
        }

        talk.addEventListener('pointerdown', () => post('/api/press'));
        talk.addEventListener('pointerup', () => post('/api/release'));
        talk.addEventListener('pointerleave', () => post('/api/release'));

        const events = new EventSource('/api/events');
        events.onmessage = refresh;
        ['status', 'recording_started', 'tick', 'recording_stopped', 'playback_started',
         'playback_finished', 'playback_preempted', 'effect_selected', 'error']
            .forEach(k => events.addEventListener(k, refresh));

        loadEffects();
        refresh();
    </script>
</body>
</html>`
