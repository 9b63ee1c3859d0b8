package scanRepository

import (
	"DentoScan/internal/api/scan"
	"DentoScan/internal/entity"
	contextPkg "DentoScan/pkg/context"
	"database/sql"
	"errors"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

type ScanDB struct {
	ID          string         `db:"id"`
	FileName    string         `db:"file_name"`
	ImageURL    string         `db:"image_url"`
	ImageWidth  sql.NullInt64  `db:"image_width"`
	ImageHeight sql.NullInt64  `db:"image_height"`
	Predictions []byte         `db:"predictions"`
	Report      sql.NullString `db:"report"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (s ScanDB) toEntity() (entity.Scan, error) {
	result := entity.Scan{
		ID:          s.ID,
		FileName:    s.FileName,
		ImageURL:    s.ImageURL,
		Report:      s.Report.String,
		CreatedAt:   s.CreatedAt,
		Predictions: []entity.Detection{},
	}

	if s.ImageWidth.Valid && s.ImageHeight.Valid {
		result.Dimensions = &entity.ImageDimensions{
			Width:  int(s.ImageWidth.Int64),
			Height: int(s.ImageHeight.Int64),
		}
	}

	if len(s.Predictions) > 0 {
		if err := jsoniter.Unmarshal(s.Predictions, &result.Predictions); err != nil {
			return entity.Scan{}, err
		}
	}

	return result, nil
}

func (r *scanRepository) CreateScan(c context.Context, s entity.Scan) error {
	requestID := contextPkg.GetRequestID(c)

	predictions, err := jsoniter.Marshal(s.Predictions)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    s.ID,
			"error":      err.Error(),
		}).Error("Failed to encode predictions for CreateScan")
		return err
	}

	argsKV := map[string]interface{}{
		"id":           s.ID,
		"file_name":    s.FileName,
		"image_url":    s.ImageURL,
		"image_width":  nil,
		"image_height": nil,
		"predictions":  string(predictions),
		"report":       s.Report,
		"created_at":   s.CreatedAt,
	}
	if s.Dimensions != nil {
		argsKV["image_width"] = s.Dimensions.Width
		argsKV["image_height"] = s.Dimensions.Height
	}

	query, args, err := sqlx.Named(queryCreateScan, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateScan")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    s.ID,
			"error":      err.Error(),
		}).Error("Database error when creating scan")
		return err
	}

	return nil
}

func (r *scanRepository) GetScanByID(c context.Context, id string) (entity.Scan, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryGetScanByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetScanByID named query preparation err")
		return entity.Scan{}, err
	}
	query = r.q.Rebind(query)

	var row ScanDB
	if err := r.q.GetContext(c, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"scan_id":    id,
			}).Warn("Scan not found")
			return entity.Scan{}, scan.ErrScanNotFound
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"scan_id":    id,
			"error":      err.Error(),
		}).Error("Database error when getting scan")
		return entity.Scan{}, err
	}

	return row.toEntity()
}

func (r *scanRepository) ListScans(c context.Context, limit int) ([]entity.Scan, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryListScans, map[string]interface{}{"limit": limit})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListScans named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	var rows []ScanDB
	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when listing scans")
		return nil, err
	}

	scans := make([]entity.Scan, 0, len(rows))
	for _, row := range rows {
		s, err := row.toEntity()
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"scan_id":    row.ID,
				"error":      err.Error(),
			}).Warn("Skipping scan with unreadable predictions")
			continue
		}
		scans = append(scans, s)
	}

	return scans, nil
}
