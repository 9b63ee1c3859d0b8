package scanRepository

const (
	queryCreateScan = `
		INSERT INTO scans (
			id,
			file_name,
			image_url,
			image_width,
			image_height,
			predictions,
			report,
			created_at
		) VALUES (
			:id,
			:file_name,
			:image_url,
			:image_width,
			:image_height,
			:predictions,
			:report,
			:created_at
		)
	`

	queryGetScanByID = `
		SELECT
			id,
			file_name,
			image_url,
			image_width,
			image_height,
			predictions,
			report,
			created_at
		FROM scans
		WHERE id = :id
	`

	queryListScans = `
		SELECT
			id,
			file_name,
			image_url,
			image_width,
			image_height,
			predictions,
			report,
			created_at
		FROM scans
		ORDER BY created_at DESC
		LIMIT :limit
	`
)
