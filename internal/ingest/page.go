package ingest

// uploadPage is the static page served for every GET. It posts a single
// file field as multipart/form-data to /upload.
const uploadPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>lexdrop</title>
<style>
body { font-family: sans-serif; max-width: 32em; margin: 4em auto; padding: 0 1em; }
form { border: 2px dashed #999; border-radius: 8px; padding: 2em; text-align: center; }
input[type=submit] { margin-top: 1em; padding: 0.5em 2em; }
#status { margin-top: 1em; color: #555; }
</style>
</head>
<body>
<h1>lexdrop</h1>
<p>Send a deck archive (.zip) or word list (.txt) to this device.</p>
<form id="f" action="/upload" method="post" enctype="multipart/form-data">
<input type="file" name="deck" accept=".zip,.txt" required>
<br>
<input type="submit" value="Upload">
</form>
<div id="status"></div>
<script>
document.getElementById("f").addEventListener("submit", function () {
  document.getElementById("status").textContent = "Uploading…";
});
</script>
</body>
</html>
`
